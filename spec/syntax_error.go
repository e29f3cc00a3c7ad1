package spec

import "fmt"

type SyntaxError struct {
	message string
}

func newSyntaxError(message string) *SyntaxError {
	return &SyntaxError{
		message: message,
	}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s", e.message)
}

var (
	// lexical errors
	synErrInvalidToken    = newSyntaxError("invalid token")
	synErrTooLargeInteger = newSyntaxError("an integer is too large")

	// syntax errors
	synErrNoDeclaration       = newSyntaxError("a schema must have at least one declaration")
	synErrUnexpectedToken     = newSyntaxError("a declaration must start with namespace, simple, attribute, type, or element")
	synErrNoNamespaceURI      = newSyntaxError("a namespace declaration needs a string")
	synErrNoName              = newSyntaxError("a declaration needs a name")
	synErrNoColon             = newSyntaxError("a colon must precede a type")
	synErrNoEquals            = newSyntaxError("an equals sign must precede a simple type definition")
	synErrNoTypeName          = newSyntaxError("a type reference is missing")
	synErrNoSemicolon         = newSyntaxError("the semicolon is missing at the last of a declaration")
	synErrNoBlockOpen         = newSyntaxError("a type body must start with {")
	synErrUnclosedBlock       = newSyntaxError("unclosed block")
	synErrInvalidOccurs       = newSyntaxError("occurrence bounds must be [min..max] where max is an integer or *")
	synErrNoParticle          = newSyntaxError("a model group needs at least one particle")
	synErrNoWildcardNamespace = newSyntaxError("a namespace constraint needs at least one string")
	synErrDuplicateWildcard   = newSyntaxError("a type can have only one attribute wildcard")
	synErrMultipleContents    = newSyntaxError("a type can have only one content")
	synErrInvalidMember       = newSyntaxError("a type body can contain attributes, a value, and a model group")
	synErrInvalidParticle     = newSyntaxError("a particle must be an element, a reference, a wildcard, or a model group")
)

var (
	// semantic errors
	semErrDuplicateType      = newSemanticError("duplicate type")
	semErrDuplicateElement   = newSemanticError("duplicate element")
	semErrDuplicateAttribute = newSemanticError("duplicate attribute")
	semErrUndefinedType      = newSemanticError("undefined type")
	semErrUndefinedElement   = newSemanticError("undefined element")
	semErrCyclicExtension    = newSemanticError("a type cannot extend itself")
	semErrExtendsSimple      = newSemanticError("a complex type cannot extend a simple type with content")
	semErrMaxLessThanMin     = newSemanticError("max occurrences are less than min occurrences")
	semErrAllOccurs          = newSemanticError("an all group particle can occur at most once")
	semErrNotSimple          = newSemanticError("a simple type must name a simple type")
)

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
