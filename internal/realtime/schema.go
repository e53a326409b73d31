package realtime

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gigconnect/gigconnect/internal/apierrors"
)

var (
	envelopeSchema = mustSchema(`{
		"type": "object",
		"required": ["event", "data"],
		"properties": {
			"event": {"type": "string", "enum": ["joinTicket", "sendMessage"]},
			"ack": {"type": "integer", "minimum": 0},
			"data": {"type": "object"}
		}
	}`)

	joinTicketSchema = mustSchema(`{
		"type": "object",
		"required": ["ticketId"],
		"properties": {
			"ticketId": {"type": "string", "pattern": "^[0-9a-fA-F]{32}$"}
		}
	}`)

	sendMessageSchema = mustSchema(`{
		"type": "object",
		"required": ["ticketId", "content"],
		"properties": {
			"ticketId": {"type": "string", "pattern": "^[0-9a-fA-F]{32}$"},
			"content": {"type": "string"}
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic("realtime: bad schema: " + err.Error())
	}
	return s
}

// validate checks raw against schema and returns one field error per
// violation. Malformed JSON is reported on the root field.
func validate(schema *gojsonschema.Schema, raw []byte) []apierrors.FieldError {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return []apierrors.FieldError{{Field: "(root)", Message: "invalid JSON"}}
	}
	if result.Valid() {
		return nil
	}
	out := make([]apierrors.FieldError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		field := e.Field()
		if f, ok := e.Details()["property"].(string); ok && field == "(root)" {
			field = f
		}
		out = append(out, apierrors.FieldError{Field: strings.TrimPrefix(field, "(root)."), Message: e.Description()})
	}
	return out
}
