// Package schema provides structural validation for task handler contracts.
//
// Every handler registered in the catalog declares an input and an output
// Schema. The execution facade validates request payloads against the input
// schema before invoking the handler, and validates the handler's result
// against the output schema before returning it.
//
// Schemas are plain maps from field name to Type:
//
//	in := schema.Schema{
//		"event_id":     schema.String(),
//		"total_budget": schema.Number(),
//		"detail_level": schema.Optional(schema.Enum("brief", "standard", "detailed")),
//	}
//	err := schema.Validate(in, payload)
//
// Validation failures aggregate into an AggregateError so the caller can
// report every offending field at once.
package schema
