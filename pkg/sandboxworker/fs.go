package sandboxworker

import "os"

// openAppend opens path for appending, creating it (and nothing else) if it
// doesn't exist yet.
func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
