package sessions

import "errors"

// ErrNotFound covers missing, expired, and foreign-owned sessions alike, so
// callers cannot enumerate other users' session ids.
var ErrNotFound = errors.New("session not found")
