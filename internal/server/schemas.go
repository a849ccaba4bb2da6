// internal/server/schemas.go
package server

import "cityreport-notifications/internal/common/validation"

// dispatchSchema validates the change-event request body. The kind value set
// is deliberately not an enum here: an unknown kind must surface as
// UNRECOGNIZED_CHANGE_KIND from the resolver, not as a generic validation
// failure.
var dispatchSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"subject_id": {Type: "string", Description: "id of the changed problem"},
		"kind":       {Type: "string", Description: "change kind"},
		"actor_id":   {Type: "string", Description: "user who caused the change"},
	},
	Required:             []string{"subject_id", "kind"},
	AdditionalProperties: false,
}

// createSchema validates the direct single-notification create body.
var createSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"recipient_id": {Type: "string"},
		"title":        {Type: "string", MaxLength: intPtr(200)},
		"body":         {Type: "string", MaxLength: intPtr(2000)},
		"severity":     {Type: "string", Enum: []string{"info", "success", "warning", "error"}},
		"link":         {Type: "string"},
	},
	Required:             []string{"recipient_id", "title", "body"},
	AdditionalProperties: false,
}

func intPtr(v int) *int {
	return &v
}
