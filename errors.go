package cspweaver

import "fmt"

// ConfigError reports an invalid configuration field. The pure operations
// (Build, RenderScriptTag) never fail; configuration loading is the only
// error surface in this package.
type ConfigError struct {
	Field   string // yaml field name
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Message)
}
