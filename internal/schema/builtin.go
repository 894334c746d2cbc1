package schema

import "github.com/xtremefabrix/formrelay/model"

// Built-in form IDs.
const (
	BookingFormID     = "booking"
	ContactFormID     = "contact"
	TestimonialFormID = "testimonial"
)

// Services offered on the booking form.
var Services = []string{
	"Car Seat Reupholstery",
	"Leather Repair & Restoration",
	"Roof Lining Replacement",
	"Soundproofing & Interior Upgrades",
	"Dashboard & Door Panel Repairs",
	"Custom Interior Project",
	"General Consultation",
}

// TimeSlots offered on the booking form.
var TimeSlots = []string{
	"09:00", "10:00", "11:00", "12:00",
	"13:00", "14:00", "15:00", "16:00",
}

// Ratings offered on the testimonial form.
var Ratings = []string{"1", "2", "3", "4", "5"}

// Builtin returns the three forms of the site.
func Builtin() []model.FormSchema {
	return []model.FormSchema{Booking(), Contact(), Testimonial()}
}

// Booking is the appointment request form.
func Booking() model.FormSchema {
	return model.FormSchema{
		ID:          BookingFormID,
		Title:       "Book Your Appointment",
		Description: "Request a free consultation and quote for your vehicle",
		Fields: []model.Field{
			{
				Name: "fullNameFabrix", Label: "Full Name", Kind: model.FieldText,
				Placeholder: "John Doe",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "2", Message: "Name must be at least 2 characters"},
					{Kind: model.ConstraintMaxLength, Value: "100"},
				},
			},
			{
				Name: "emailFabrix", Label: "Email Address", Kind: model.FieldEmail,
				Placeholder: "john@example.com",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintEmail, Message: "Invalid email address"},
				},
			},
			{
				Name: "phoneFabrix", Label: "Phone Number", Kind: model.FieldPhone,
				Placeholder: "+27 XX XXX XXXX",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "10", Message: "Phone number must be at least 10 digits"},
				},
			},
			{
				Name: "serviceTypeFabrix", Label: "Service Type", Kind: model.FieldSelect,
				Options: Services,
				Constraints: []model.Constraint{
					{Kind: model.ConstraintRequired, Message: "Please select a service type"},
					{Kind: model.ConstraintOneOf, Message: "Please select a service type"},
				},
			},
			{
				Name: "preferredDateFabrix", Label: "Preferred Date", Kind: model.FieldDate,
				Constraints: []model.Constraint{
					{Kind: model.ConstraintRequired, Message: "Please select a preferred date"},
					{Kind: model.ConstraintNotBeforeToday, Message: "Please select a date from today onwards"},
				},
			},
			{
				Name: "preferredTimeFabrix", Label: "Preferred Time", Kind: model.FieldSelect,
				Optional: true,
				Options:  TimeSlots,
				Constraints: []model.Constraint{
					{Kind: model.ConstraintOneOf, Message: "Please select a preferred time"},
				},
			},
			{
				Name: "notesFabrix", Label: "Additional Notes", Kind: model.FieldMultiline,
				Optional:    true,
				Sanitize:    true,
				Placeholder: "Any specific requirements, color preferences, or questions...",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMaxLength, Value: "500"},
				},
			},
		},
		Messages: model.FormMessages{
			SuccessTitle:       "Booking Request Received!",
			SuccessDescription: "We'll contact you shortly to confirm your appointment.",
			FailureDescription: "We couldn't submit your booking. Please try again.",
			SubmitLabel:        "Request Free Quote",
			SubmittingLabel:    "Submitting Request...",
		},
	}
}

// Contact is the general enquiry form.
func Contact() model.FormSchema {
	return model.FormSchema{
		ID:          ContactFormID,
		Title:       "Send Us a Message",
		Description: "We're here to answer your questions and bring your vision to life",
		Fields: []model.Field{
			{
				Name: "name", Label: "Name", Kind: model.FieldText,
				Placeholder: "Your name",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "2", Message: "Name must be at least 2 characters"},
					{Kind: model.ConstraintMaxLength, Value: "100"},
				},
			},
			{
				Name: "email", Label: "Email", Kind: model.FieldEmail,
				Placeholder: "your@email.com",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintEmail, Message: "Invalid email address"},
				},
			},
			{
				Name: "phone", Label: "Phone", Kind: model.FieldPhone,
				Placeholder: "+27 XX XXX XXXX",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "10", Message: "Phone number must be at least 10 digits"},
				},
			},
			{
				Name: "subject", Label: "Subject", Kind: model.FieldText,
				Placeholder: "What is this about?",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "5", Message: "Subject must be at least 5 characters"},
					{Kind: model.ConstraintMaxLength, Value: "200"},
				},
			},
			{
				Name: "message", Label: "Message", Kind: model.FieldMultiline,
				Sanitize:    true,
				Placeholder: "Tell us more about your inquiry...",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "10", Message: "Message must be at least 10 characters"},
					{Kind: model.ConstraintMaxLength, Value: "1000"},
				},
			},
		},
		Messages: model.FormMessages{
			SuccessTitle:       "Message Sent!",
			SuccessDescription: "We'll get back to you as soon as possible.",
			FailureDescription: "We couldn't send your message. Please try again.",
			SubmitLabel:        "Send Message",
			SubmittingLabel:    "Sending...",
		},
	}
}

// Testimonial is the customer review form.
func Testimonial() model.FormSchema {
	return model.FormSchema{
		ID:          TestimonialFormID,
		Title:       "Share Your Experience",
		Description: "We'd love to hear about your experience with Xtreme Fabrix Solutions",
		Fields: []model.Field{
			{
				Name: "nameFabrixTestimonial", Label: "Your Name", Kind: model.FieldText,
				Placeholder: "John Doe",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "2", Message: "Name must be at least 2 characters"},
					{Kind: model.ConstraintMaxLength, Value: "100"},
				},
			},
			{
				Name: "emailFabrixTestimonial", Label: "Email", Kind: model.FieldEmail,
				Placeholder: "john@example.com",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintEmail, Message: "Invalid email address"},
				},
			},
			{
				Name: "ratingFabrixTestimonial", Label: "Rating", Kind: model.FieldSelect,
				Default: "5",
				Options: Ratings,
				Constraints: []model.Constraint{
					{Kind: model.ConstraintOneOf, Message: "Please select a rating between 1 and 5"},
				},
			},
			{
				Name: "testimonialFabrixTestimonial", Label: "Your Testimonial", Kind: model.FieldMultiline,
				Sanitize:    true,
				Placeholder: "Share your experience with our services...",
				Constraints: []model.Constraint{
					{Kind: model.ConstraintMinLength, Value: "10", Message: "Testimonial must be at least 10 characters"},
					{Kind: model.ConstraintMaxLength, Value: "500"},
				},
			},
		},
		Messages: model.FormMessages{
			SuccessTitle:       "Thank you for your feedback!",
			SuccessDescription: "Your testimonial has been submitted and will be reviewed shortly.",
			FailureDescription: "We couldn't submit your testimonial. Please try again.",
			SubmitLabel:        "Submit Testimonial",
			SubmittingLabel:    "Submitting...",
		},
	}
}
