package deploy

import "fmt"

// Error codes for deployment operations.
const (
	ErrCodeInProgress     = "DEPLOY_IN_PROGRESS"
	ErrCodeStopFailed     = "STOP_FAILED"
	ErrCodeUpdateFailed   = "UPDATE_FAILED"
	ErrCodeStartFailed    = "START_FAILED"
	ErrCodeVerifyFailed   = "VERIFY_FAILED"
	ErrCodeRollbackFailed = "ROLLBACK_FAILED"
	ErrCodeDeployFailed   = "DEPLOY_FAILED"
	ErrCodeNoBackup       = "NO_BACKUP"
)

// Error represents a deployment-specific error with a code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
