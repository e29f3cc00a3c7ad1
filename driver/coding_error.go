package driver

type CodingError struct {
	message string
}

func newCodingError(message string) *CodingError {
	return &CodingError{
		message: message,
	}
}

func (e *CodingError) Error() string {
	return e.message
}

var (
	// ErrEventNotRepresentable means no production at any level codes the
	// event under the current fidelity options.
	ErrEventNotRepresentable = newCodingError("event not representable")
	// ErrMalformedEventCode means an input contains an event code no
	// production has.
	ErrMalformedEventCode = newCodingError("malformed event code")
	ErrUnbalanced         = newCodingError("unbalanced elements")
	ErrUnexpectedEvent    = newCodingError("unexpected event")
	ErrInvalidHeader      = newCodingError("invalid EXI header")
	ErrInvalidValue       = newCodingError("invalid value")
)
