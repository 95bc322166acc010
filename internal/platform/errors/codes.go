// Package errors provides structured error handling with i18n support.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNoProfile means no birth profile has been set yet.
	CodeNoProfile Code = "NO_PROFILE"
	// CodeInvalidProfile rejects a profile with missing or out-of-range fields.
	CodeInvalidProfile Code = "INVALID_PROFILE"
	// CodeInvalidSettings rejects wallpaper settings outside the enumerations.
	CodeInvalidSettings Code = "INVALID_SETTINGS"

	// CodeComputationFailed wraps a remote validation or transport failure.
	CodeComputationFailed Code = "COMPUTATION_FAILED"

	// CodeStoreUnavailable reports degraded local persistence.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// Precondition reports whether the code describes input the caller must fix.
func (c Code) Precondition() bool {
	switch c {
	case CodeNoProfile, CodeInvalidProfile, CodeInvalidSettings:
		return true
	default:
		return false
	}
}
