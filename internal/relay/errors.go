package relay

import "fmt"

// ParseError reports raw input that could not be parsed as a message. It is
// the only error the coordinator returns to the transport, and it makes the
// transport refuse the message.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable message: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
