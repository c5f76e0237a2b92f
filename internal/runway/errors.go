package runway

import "errors"

// Sentinel errors for the failure taxonomy. Callers classify failures
// with errors.Is and wrap these with call-site context.
var (
	// ErrAuthentication indicates the auth handshake or its
	// verification failed. Fatal during pool initialization.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNavigation indicates the page driver could not reach a page.
	ErrNavigation = errors.New("navigation failed")

	// ErrElementNotFound indicates an expected page element was absent.
	ErrElementNotFound = errors.New("element not found")

	// ErrDataExtraction indicates page data could not be extracted.
	ErrDataExtraction = errors.New("data extraction failed")

	// ErrValidation indicates malformed data was rejected before a write.
	ErrValidation = errors.New("validation failed")

	// ErrStorage indicates the storage backend is unreachable or a
	// write failed. Triggers rollback inside an active session.
	ErrStorage = errors.New("storage operation failed")

	// ErrConflict indicates a designer session is already active.
	ErrConflict = errors.New("session already active")

	// ErrNoActiveSession indicates a session-scoped operation was
	// attempted with no session open.
	ErrNoActiveSession = errors.New("no active session")
)
