package schema

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/xtremefabrix/formrelay/model"
)

// ValuesSchema describes the JSON payload of a form as an OpenAPI schema.
// Date and email checks that need "today" or address parsing stay in
// Validate; the document carries lengths, enums and required fields.
func ValuesSchema(f model.FormSchema) *openapi3.Schema {
	obj := openapi3.NewObjectSchema()
	obj.Title = f.Title
	obj.Description = f.Description

	for _, field := range f.Fields {
		prop := openapi3.NewStringSchema()
		prop.Title = field.Label
		if field.Default != "" {
			prop.Default = field.Default
		}

		switch field.Kind {
		case model.FieldEmail:
			prop.Format = "email"
		case model.FieldDate:
			prop.Format = "date"
		}

		for _, c := range field.Constraints {
			switch c.Kind {
			case model.ConstraintMinLength:
				if n, err := strconv.ParseUint(c.Value, 10, 64); err == nil && !field.Optional {
					prop.WithMinLength(int64(n))
				}
			case model.ConstraintMaxLength:
				if n, err := strconv.ParseUint(c.Value, 10, 64); err == nil {
					prop.WithMaxLength(int64(n))
				}
			case model.ConstraintPattern:
				if !field.Optional {
					prop.WithPattern(c.Value)
				}
			case model.ConstraintOneOf:
				prop.Enum = enumOf(field)
			}
		}

		obj.WithProperty(field.Name, prop)
		if !field.Optional {
			obj.Required = append(obj.Required, field.Name)
		}
	}
	return obj
}

func enumOf(field model.Field) []any {
	out := make([]any, 0, len(field.Options)+1)
	if field.Optional {
		out = append(out, "")
	}
	for _, o := range field.Options {
		out = append(out, o)
	}
	return out
}

// OpenAPIDocument builds the public API description for every registered
// form.
func OpenAPIDocument(reg *Registry, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "formrelay",
			Description: "Lead-capture form validation and webhook delivery",
			Version:     version,
		},
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
		Paths:      openapi3.NewPaths(),
	}

	outcome := openapi3.NewObjectSchema().
		WithProperty("kind", openapi3.NewStringSchema().WithEnum(
			string(model.OutcomeDelivered), string(model.OutcomeRejected),
			string(model.OutcomeUnreachable), string(model.OutcomeValidationFailed),
		)).
		WithProperty("errors", openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema()))
	notification := openapi3.NewObjectSchema().
		WithProperty("title", openapi3.NewStringSchema()).
		WithProperty("description", openapi3.NewStringSchema()).
		WithProperty("variant", openapi3.NewStringSchema().WithEnum(model.VariantDefault, model.VariantDestructive))
	errorEnvelope := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())

	doc.Components.Schemas["Outcome"] = openapi3.NewSchemaRef("", outcome)
	doc.Components.Schemas["Notification"] = openapi3.NewSchemaRef("", notification)
	doc.Components.Schemas["ErrorEnvelope"] = openapi3.NewSchemaRef("", errorEnvelope)

	submitResponse := openapi3.NewObjectSchema().
		WithPropertyRef("outcome", componentRef("Outcome", outcome)).
		WithPropertyRef("notification", componentRef("Notification", notification))

	validateResponse := openapi3.NewObjectSchema().
		WithProperty("valid", openapi3.NewBoolSchema()).
		WithProperty("errors", openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewStringSchema()))

	errorResponse := func(desc string) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription(desc).
			WithJSONSchemaRef(componentRef("ErrorEnvelope", errorEnvelope))}
	}

	list := openapi3.NewOperation()
	list.OperationID = "listForms"
	list.Summary = "List available forms"
	list.Responses = openapi3.NewResponses(
		openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Form summaries")}),
	)
	doc.Paths.Set("/api/forms", &openapi3.PathItem{Get: list})

	for _, f := range reg.All() {
		values := ValuesSchema(f)
		doc.Components.Schemas[f.ID] = openapi3.NewSchemaRef("", values)
		ref := componentRef(f.ID, values)

		describe := openapi3.NewOperation()
		describe.OperationID = f.ID + ".describe"
		describe.Summary = f.Title
		describe.Responses = openapi3.NewResponses(
			openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Form descriptor")}),
		)
		doc.Paths.Set("/api/forms/"+f.ID, &openapi3.PathItem{Get: describe})

		validate := openapi3.NewOperation()
		validate.OperationID = f.ID + ".validate"
		validate.Summary = "Validate " + f.Title + " values"
		validate.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref)}
		validate.Responses = openapi3.NewResponses(
			openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().
				WithDescription("Validation result").
				WithJSONSchema(validateResponse)}),
			openapi3.WithStatus(400, errorResponse("Malformed body")),
		)
		doc.Paths.Set("/api/forms/"+f.ID+"/validate", &openapi3.PathItem{Post: validate})

		submit := openapi3.NewOperation()
		submit.OperationID = f.ID + ".submit"
		submit.Summary = "Submit " + f.Title
		submit.Parameters = openapi3.Parameters{{Value: openapi3.NewHeaderParameter("X-Idempotency-Key").WithSchema(openapi3.NewStringSchema())}}
		submit.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref)}
		submit.Responses = openapi3.NewResponses(
			openapi3.WithStatus(200, &openapi3.ResponseRef{Value: openapi3.NewResponse().
				WithDescription("Submission outcome").
				WithJSONSchema(submitResponse)}),
			openapi3.WithStatus(400, errorResponse("Malformed body")),
			openapi3.WithStatus(409, errorResponse("Idempotency key reused with different values")),
		)
		doc.Paths.Set("/api/forms/"+f.ID+"/submissions", &openapi3.PathItem{Post: submit})
	}

	return doc
}

func componentRef(name string, s *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, s)
}
