package schema

import (
	"errors"
	"fmt"
)

var ErrNoSchema = errors.New("no schema registered")

// ConfigurationError reports an inconsistent catalog. It is raised while
// the registry is built, never while decoding.
type ConfigurationError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %s.%s: %s", e.Type, e.Field, e.Reason)
	}
	if e.Type != "" {
		return fmt.Sprintf("schema %s: %s", e.Type, e.Reason)
	}
	return "schema: " + e.Reason
}
