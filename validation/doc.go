// Package validation provides input validation for taskgraph configuration
// and task definitions.
//
// Struct tag validation (go-playground/validator) covers configuration
// structs; field names in messages follow their mapstructure, yaml or json
// tags. The fluent Validator collects field errors for record-by-record
// checks such as task ids in a task file.
//
//	v := validation.New()
//	v.Required("tasks[0].id", rec.ID).Unique("id", "tasks[0].id", rec.ID)
//	if err := v.Validate(); err != nil { ... }
package validation
