package grammar

type SemanticError struct {
	message string
}

func newSemanticError(message string) *SemanticError {
	return &SemanticError{
		message: message,
	}
}

func (e *SemanticError) Error() string {
	return e.message
}

var (
	// ErrAmbiguousContent means a content model has two alternatives for the
	// same terminal that cannot be merged into one deterministic rule.
	ErrAmbiguousContent = newSemanticError("ambiguous content model")
	ErrInvalidOccurs    = newSemanticError("invalid occurrence bounds")
	ErrUndefinedType    = newSemanticError("undefined type")
	ErrNoSchema         = newSemanticError("a schema is required")
	ErrStrictFidelity   = newSemanticError("strict mode cannot preserve comments, processing instructions, DTDs, prefixes, or self-contained elements")
	ErrInvalidGrammar   = newSemanticError("invalid compiled grammar")
)
