package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrNotSupported is returned by operations that cannot handle the target
// they were handed. It is wrapped like any other operation failure.
var ErrNotSupported = stderrors.New("upgrade not supported for target")

// Kind classifies upgrade failures.
type Kind string

const (
	// KindConfiguration marks malformed or incomplete pipeline configuration.
	KindConfiguration Kind = "configuration"
	// KindOperation marks a failure raised while an operation executed.
	KindOperation Kind = "operation"
	// KindTarget marks the aggregate failure of one target's upgrade run.
	KindTarget Kind = "target"
	// KindEnumeration marks a failure to list the targets to upgrade.
	KindEnumeration Kind = "enumeration"
)

// UpgradeError is the single error type surfaced by the upgrade framework.
type UpgradeError struct {
	Kind      Kind
	Message   string
	Operation string
	Target    string
	Err       error
}

// NewConfigurationError constructs a KindConfiguration error.
func NewConfigurationError(message string, err error) error {
	return &UpgradeError{Kind: KindConfiguration, Message: message, Err: err}
}

// NewOperationError constructs a KindOperation error for the named operation
// running against the described target.
func NewOperationError(operation, target string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &UpgradeError{Kind: KindOperation, Message: message, Operation: operation, Target: target, Err: err}
}

// NewTargetError constructs a KindTarget error.
func NewTargetError(target string, err error) error {
	return &UpgradeError{Kind: KindTarget, Message: "upgrade failed", Target: target, Err: err}
}

// NewEnumerationError constructs a KindEnumeration error.
func NewEnumerationError(err error) error {
	return &UpgradeError{Kind: KindEnumeration, Message: "unable to list targets", Err: err}
}

func (e *UpgradeError) Error() string {
	if e == nil {
		return ""
	}

	prefix := fmt.Sprintf("%s error", e.Kind)
	switch {
	case e.Operation != "" && e.Target != "":
		prefix = fmt.Sprintf("%s [%s on %s]", prefix, e.Operation, e.Target)
	case e.Operation != "":
		prefix = fmt.Sprintf("%s [%s]", prefix, e.Operation)
	case e.Target != "":
		prefix = fmt.Sprintf("%s [%s]", prefix, e.Target)
	}

	switch {
	case e.Kind == KindOperation:
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
}

// Unwrap exposes the underlying error.
func (e *UpgradeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an UpgradeError of the same kind.
func (e *UpgradeError) Is(target error) bool {
	t, ok := target.(*UpgradeError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether any error in err's chain is an UpgradeError of kind.
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &UpgradeError{Kind: kind})
}

// KindOf returns the kind of the outermost UpgradeError in err's chain.
func KindOf(err error) (Kind, bool) {
	var upgradeErr *UpgradeError
	if !stderrors.As(err, &upgradeErr) {
		return "", false
	}
	return upgradeErr.Kind, true
}

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures descriptor and parameter validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
