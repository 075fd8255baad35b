package governance

import "errors"

// ErrSchemaViolation is returned when a candidate state fails validation
// against its governing schema.
var ErrSchemaViolation = errors.New("governance: state violates schema")
