package menu

import "errors"

// ConfigError reports a deployment or catalog defect. It is never retried.
type ConfigError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ConfigError) Error() string {
	return e.Message
}

// CodeConfiguration is the error code shared by every ConfigError
const CodeConfiguration = "CONFIGURATION_ERROR"

var (
	// ErrNoBaseForest is returned when the store was built without base roots
	ErrNoBaseForest = ConfigError{Code: CodeConfiguration, Message: "menu store has no base forest"}
	// ErrNilStore is returned by a composer built around a nil store
	ErrNilStore = ConfigError{Code: CodeConfiguration, Message: "menu composer has no store"}
)

// Structural violations reported by Build and Validate
var (
	ErrButtonChildren = errors.New("button nodes cannot have children")
	ErrDuplicateID    = errors.New("duplicate node id")
	ErrParentMismatch = errors.New("parent id does not match enclosing node")
	ErrSharedNode     = errors.New("node is owned by more than one parent")
	ErrNilNode        = errors.New("nil node in forest")
)

// IsConfigError reports whether err is, or wraps, a ConfigError
func IsConfigError(err error) bool {
	var cfgErr ConfigError
	return errors.As(err, &cfgErr)
}
