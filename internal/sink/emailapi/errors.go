package emailapi

import "fmt"

// StatusError reports a send operation that ended in a status other than
// Succeeded.
type StatusError struct {
	ID     string
	Status Status
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("send operation %s ended with status %s: %s", e.ID, e.Status, e.Detail)
	}
	return fmt.Sprintf("send operation %s ended with status %s", e.ID, e.Status)
}
