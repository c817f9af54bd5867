package catalog

import "errors"

// ErrNotFound marks a missing conversation, version or audio payload.
// Callers check it with errors.Is; the HTTP layer maps it to 404.
var ErrNotFound = errors.New("not found")
