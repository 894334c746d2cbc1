package delivery

import (
	"github.com/xtremefabrix/formrelay/internal/schema"
	"github.com/xtremefabrix/formrelay/model"
)

// Payload is the JSON object sent to a webhook. Its keys are exactly the
// schema's field names.
type Payload map[string]string

// PayloadFor builds a fresh payload for one submission attempt from the
// normalized values: keys not in the schema are dropped, missing fields are
// sent empty or as their default, and marked free-text fields have markup
// stripped.
func PayloadFor(s model.FormSchema, values model.Values) Payload {
	return Payload(schema.Normalize(s, values))
}
