package spec

import (
	"errors"
	"strings"
	"testing"

	verr "github.com/nihei9/exigram/error"
	"github.com/nihei9/exigram/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopSchema = `
// A small catalogue.
namespace "urn:shop";

simple Price = decimal;
attribute lang: language;

type Item {
	@sku: string;
	sequence {
		name: string;
	}
}

type Product extends Item {
	@price?: Price;
	sequence {
		qty: int [0..1];
	}
}

element item: Item nillable;
element product: Product;
element catalogue: {
	@*;
	choice [0..*] {
		ref item;
		ref product;
		any "urn:ext";
	}
};
`

func TestReadSchema(t *testing.T) {
	s, err := ReadSchema(strings.NewReader(shopSchema))
	require.NoError(t, err)

	shop := func(local string) schema.QName {
		return schema.QName{URI: "urn:shop", Local: local}
	}
	decimal, _ := schema.Builtin("decimal")
	language, _ := schema.Builtin("language")
	str, _ := schema.Builtin("string")
	integer, _ := schema.Builtin("int")

	require.Len(t, s.Types, 3)
	price, item, product := s.Types[0], s.Types[1], s.Types[2]

	assert.Equal(t, shop("Price"), price.Name)
	assert.True(t, price.Simple)
	assert.Equal(t, decimal, price.Datatype)

	require.Len(t, s.Attributes, 1)
	assert.Equal(t, shop("lang"), s.Attributes[0].Name)
	assert.Equal(t, language, s.Attributes[0].Type)

	assert.Equal(t, shop("Item"), item.Name)
	assert.True(t, item.HasNamedSubTypes)
	require.Len(t, item.Attributes, 1)
	assert.Equal(t, &schema.AttributeUse{Name: schema.QName{Local: "sku"}, Type: str, Required: true}, item.Attributes[0])
	require.NotNil(t, item.Content)
	itemSeq := item.Content.Term.(*schema.ModelGroup)
	require.Len(t, itemSeq.Particles, 1)
	name := itemSeq.Particles[0].Term.(*schema.ElementDecl)
	assert.Equal(t, schema.QName{Local: "name"}, name.Name)
	assert.Equal(t, str, name.Type.Datatype)
	assert.False(t, name.Global)

	// A derived type has the attributes and the content of its base first.
	assert.Same(t, item, product.Base)
	assert.False(t, product.HasNamedSubTypes)
	require.Len(t, product.Attributes, 2)
	assert.Equal(t, "sku", product.Attributes[0].Name.Local)
	assert.Equal(t, &schema.AttributeUse{Name: schema.QName{Local: "price"}, Type: decimal}, product.Attributes[1])
	productSeq := product.Content.Term.(*schema.ModelGroup)
	require.Len(t, productSeq.Particles, 2)
	assert.Same(t, item.Content, productSeq.Particles[0])
	qty := productSeq.Particles[1].Term.(*schema.ModelGroup).Particles[0]
	assert.Equal(t, 0, qty.Min)
	assert.Equal(t, 1, qty.Max)
	assert.Equal(t, integer, qty.Term.(*schema.ElementDecl).Type.Datatype)

	require.Len(t, s.Elements, 3)
	itemElem, productElem, catalogue := s.Elements[0], s.Elements[1], s.Elements[2]
	assert.Equal(t, shop("item"), itemElem.Name)
	assert.True(t, itemElem.Global)
	assert.True(t, itemElem.Nillable)
	assert.Same(t, item, itemElem.Type)
	assert.Same(t, product, productElem.Type)

	ct := catalogue.Type
	require.NotNil(t, ct)
	assert.True(t, ct.Name.IsZero())
	assert.Equal(t, &schema.Wildcard{Constraint: schema.NamespaceAny}, ct.AttributeWildcard)
	assert.Equal(t, 0, ct.Content.Min)
	assert.Equal(t, schema.Unbounded, ct.Content.Max)
	choice := ct.Content.Term.(*schema.ModelGroup)
	assert.Equal(t, schema.GroupChoice, choice.Kind)
	require.Len(t, choice.Particles, 3)
	assert.Same(t, itemElem, choice.Particles[0].Term)
	assert.Same(t, productElem, choice.Particles[1].Term)
	assert.Equal(t, &schema.Wildcard{Constraint: schema.NamespaceList, URIs: []string{"urn:ext"}}, choice.Particles[2].Term)
}

func TestReadSchema_Features(t *testing.T) {
	tests := []struct {
		caption string
		src     string
		check   func(t *testing.T, s *schema.Schema)
	}{
		{
			caption: "qualified namespaces qualify local elements",
			src: `
namespace "urn:a" qualified;
element root: { sequence { child: string; } };
`,
			check: func(t *testing.T, s *schema.Schema) {
				seq := s.Elements[0].Type.Content.Term.(*schema.ModelGroup)
				assert.Equal(t, schema.QName{URI: "urn:a", Local: "child"}, seq.Particles[0].Term.(*schema.ElementDecl).Name)
			},
		},
		{
			caption: "anyType is the ur-type",
			src:     `element root: anyType;`,
			check: func(t *testing.T, s *schema.Schema) {
				assert.Nil(t, s.Elements[0].Type)
			},
		},
		{
			caption: "a type can refer to itself through its content",
			src:     `type Node { sequence { node: Node [0..*]; } } element root: Node;`,
			check: func(t *testing.T, s *schema.Schema) {
				n := s.Types[0]
				child := n.Content.Term.(*schema.ModelGroup).Particles[0].Term.(*schema.ElementDecl)
				assert.Same(t, n, child.Type)
			},
		},
		{
			caption: "a simple content type extends a built-in type with attributes",
			src:     `type Amount extends decimal { @currency?: string; } element total: Amount;`,
			check: func(t *testing.T, s *schema.Schema) {
				a := s.Types[0]
				decimal, _ := schema.Builtin("decimal")
				assert.True(t, a.Simple)
				assert.Equal(t, decimal, a.Datatype)
				require.Len(t, a.Attributes, 1)
				assert.False(t, a.Attributes[0].Required)
			},
		},
		{
			caption: "mixed all groups and negative wildcards are kept",
			src:     `element p: mixed { all { b: string [0..1]; i: string; } }; type W { @* not "urn:x"; }`,
			check: func(t *testing.T, s *schema.Schema) {
				p := s.Elements[0].Type
				assert.True(t, p.Mixed)
				assert.Equal(t, schema.GroupAll, p.Content.Term.(*schema.ModelGroup).Kind)
				assert.Equal(t, &schema.Wildcard{Constraint: schema.NamespaceNot, URIs: []string{"urn:x"}}, s.Types[0].AttributeWildcard)
			},
		},
		{
			caption: "a reference may point forward and across namespaces",
			src: `
element root: Box;
namespace "urn:b";
type Box { sequence { content: string; } }
`,
			check: func(t *testing.T, s *schema.Schema) {
				assert.Equal(t, schema.QName{URI: "urn:b", Local: "Box"}, s.Elements[0].Type.Name)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			s, err := ReadSchema(strings.NewReader(tt.src))
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestBuild_SemanticErrors(t *testing.T) {
	tests := []struct {
		caption string
		src     string
		causes  []error
	}{
		{
			caption: "a type must be defined",
			src:     `element a: Unknown;`,
			causes:  []error{semErrUndefinedType},
		},
		{
			caption: "types must be unique",
			src:     `type T { @a: int; } simple T = int; element a: T;`,
			causes:  []error{semErrDuplicateType},
		},
		{
			caption: "global elements must be unique",
			src:     `element a: int; element a: string;`,
			causes:  []error{semErrDuplicateElement},
		},
		{
			caption: "attributes of a type must be unique including inherited ones",
			src:     `type B { @a: int; } type D extends B { @a: string; }`,
			causes:  []error{semErrDuplicateAttribute},
		},
		{
			caption: "a referenced element must be global",
			src:     `element a: { sequence { ref b; } };`,
			causes:  []error{semErrUndefinedElement},
		},
		{
			caption: "a type cannot extend itself",
			src:     `type A extends B { } type B extends A { }`,
			causes:  []error{semErrCyclicExtension},
		},
		{
			caption: "an attribute needs a simple type",
			src:     `type C { @a?: string; } type D { @c: C; }`,
			causes:  []error{semErrNotSimple},
		},
		{
			caption: "a type with element content cannot extend a simple type",
			src:     `type D extends int { sequence { a: int; } }`,
			causes:  []error{semErrExtendsSimple},
		},
		{
			caption: "max occurrences cannot be less than min occurrences",
			src:     `element a: { sequence { b: int [2..1]; } };`,
			causes:  []error{semErrMaxLessThanMin},
		},
		{
			caption: "particles of an all group occur at most once",
			src:     `element a: { all { b: int [0..*]; } };`,
			causes:  []error{semErrAllOccurs},
		},
		{
			caption: "every semantic error is reported",
			src:     `element a: X; element b: Y;`,
			causes:  []error{semErrUndefinedType, semErrUndefinedType},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			_, err := ReadSchema(strings.NewReader(tt.src))
			var specErrs verr.SpecErrors
			if !errors.As(err, &specErrs) {
				t.Fatalf("unexpected error; want: %v, got: %v", tt.causes, err)
			}
			if len(specErrs) != len(tt.causes) {
				t.Fatalf("unexpected error count; want: %v, got: %v (%v)", len(tt.causes), len(specErrs), specErrs)
			}
			for i, cause := range tt.causes {
				if specErrs[i].Cause != cause {
					t.Fatalf("unexpected error; want: %v, got: %v", cause, specErrs[i].Cause)
				}
				if specErrs[i].Row == 0 {
					t.Fatalf("a semantic error must have a position: %v", specErrs[i])
				}
			}
		})
	}
}
