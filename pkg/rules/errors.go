package rules

import (
	"errors"
	"fmt"
)

// ErrUnknownAttribute should be wrapped by Resource implementations when
// asked for an attribute or relationship they do not have. The rule
// engine turns it into a ConfigurationError naming the offending path.
var ErrUnknownAttribute = errors.New("unknown attribute")

// ConfigurationError reports a rule that references something its
// collaborators cannot resolve: a field or relationship the resource
// does not have, an identity that lacks the shape a rule requires, or a
// malformed attribute path. It is surfaced immediately, never retried.
type ConfigurationError struct {
	Path string // the attribute path or expression that failed
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rule configuration error at %q", e.Path)
	}
	return fmt.Sprintf("rule configuration error at %q: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErr(path string, err error) error {
	return &ConfigurationError{Path: path, Err: err}
}
