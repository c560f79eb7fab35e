package email

// Outcome is the result of one delivery attempt. Exactly one of Reference
// (when delivered) or Err (when failed) is meaningful.
type Outcome struct {
	delivered bool
	Reference string
	Err       error
}

// Delivered builds a successful outcome carrying the sink's reference,
// such as an HTTP status code or a provider message id.
func Delivered(reference string) Outcome {
	return Outcome{delivered: true, Reference: reference}
}

// Failed builds a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

// Delivered reports whether the sink accepted the message.
func (o Outcome) Delivered() bool {
	return o.delivered
}

// Reason returns the failure reason, or "" for a delivered outcome.
func (o Outcome) Reason() string {
	if o.delivered || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
