package alerts

import "errors"

// ErrNotFound indicates an acknowledge/resolve against a closed or unknown
// alert. Benign for idempotent callers; logged at low severity, never a
// crash.
var ErrNotFound = errors.New("alert: not found")
