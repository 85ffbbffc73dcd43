package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrWeakSecret         = fmt.Errorf("session secret is too weak")

	// Authorization flow errors
	ErrProviderDenied = fmt.Errorf("authorization denied by provider")
	ErrMissingCode    = fmt.Errorf("missing authorization code")
	ErrInvalidCode    = fmt.Errorf("bad authorization code")
	ErrStateMismatch  = fmt.Errorf("authorization state mismatch")

	// Session errors
	ErrSession          = fmt.Errorf("session error")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest = fmt.Errorf("API request failed")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
