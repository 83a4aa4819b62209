package cli

import "fmt"

// sessionNotFoundError reports a session id with no live row in the store.
// Expired rows count as missing.
type sessionNotFoundError struct {
	id string
}

func (e sessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s (expired or never saved)", e.id)
}
