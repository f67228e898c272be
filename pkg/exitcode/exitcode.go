// Package exitcode provides standardized exit codes for gsd
package exitcode

// Exit codes for the gsd CLI
const (
	Success         = 0
	GeneralError    = 1
	PermissionError = 2
	PathTraversal   = 3
	Interrupted     = 130
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case PermissionError:
		return "Permission denied"
	case PathTraversal:
		return "Path traversal rejected"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
