package permissions

import "fmt"

/*
ConfigurationError means the permission setup itself is broken: a codename
that is not in the catalogue, or a grant at a scope its permission does not
allow. It points at a deployment bug and should not be recovered from.
*/
type ConfigurationError struct {
	Codename string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Codename == "" {
		return fmt.Sprintf("permission configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("permission configuration error: %s: %s", e.Codename, e.Reason)
}
