package spec

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	verr "github.com/nihei9/exigram/error"
	mlcompiler "github.com/nihei9/maleeni/compiler"
	mldriver "github.com/nihei9/maleeni/driver"
	mlspec "github.com/nihei9/maleeni/spec"
)

type tokenKind string

const (
	tokenKindKWNamespace = tokenKind("namespace")
	tokenKindKWQualified = tokenKind("qualified")
	tokenKindKWSimple    = tokenKind("simple")
	tokenKindKWAttribute = tokenKind("attribute")
	tokenKindKWType      = tokenKind("type")
	tokenKindKWExtends   = tokenKind("extends")
	tokenKindKWMixed     = tokenKind("mixed")
	tokenKindKWElement   = tokenKind("element")
	tokenKindKWNillable  = tokenKind("nillable")
	tokenKindKWSequence  = tokenKind("sequence")
	tokenKindKWChoice    = tokenKind("choice")
	tokenKindKWAll       = tokenKind("all")
	tokenKindKWAny       = tokenKind("any")
	tokenKindKWNot       = tokenKind("not")
	tokenKindKWRef       = tokenKind("ref")
	tokenKindKWValue     = tokenKind("value")
	tokenKindID          = tokenKind("id")
	tokenKindInteger     = tokenKind("integer")
	tokenKindString      = tokenKind("string")
	tokenKindSemicolon   = tokenKind(";")
	tokenKindColon       = tokenKind(":")
	tokenKindEquals      = tokenKind("=")
	tokenKindBlockOpen   = tokenKind("{")
	tokenKindBlockClose  = tokenKind("}")
	tokenKindOccursOpen  = tokenKind("[")
	tokenKindOccursClose = tokenKind("]")
	tokenKindRange       = tokenKind("..")
	tokenKindAt          = tokenKind("@")
	tokenKindOptional    = tokenKind("?")
	tokenKindStar        = tokenKind("*")
	tokenKindEOF         = tokenKind("eof")
	tokenKindInvalid     = tokenKind("invalid")
)

var keywords = []tokenKind{
	tokenKindKWNamespace,
	tokenKindKWQualified,
	tokenKindKWSimple,
	tokenKindKWAttribute,
	tokenKindKWType,
	tokenKindKWExtends,
	tokenKindKWMixed,
	tokenKindKWElement,
	tokenKindKWNillable,
	tokenKindKWSequence,
	tokenKindKWChoice,
	tokenKindKWAll,
	tokenKindKWAny,
	tokenKindKWNot,
	tokenKindKWRef,
	tokenKindKWValue,
}

type Position struct {
	Row int
	Col int
}

func newPosition(row, col int) Position {
	return Position{
		Row: row,
		Col: col,
	}
}

type token struct {
	kind tokenKind
	text string
	num  int
	pos  Position
}

func newSymbolToken(kind tokenKind, pos Position) *token {
	return &token{
		kind: kind,
		pos:  pos,
	}
}

func newTextToken(kind tokenKind, text string, pos Position) *token {
	return &token{
		kind: kind,
		text: text,
		pos:  pos,
	}
}

func newIntegerToken(num int, pos Position) *token {
	return &token{
		kind: tokenKindInteger,
		num:  num,
		pos:  pos,
	}
}

func newEOFToken(pos Position) *token {
	return &token{
		kind: tokenKindEOF,
		pos:  pos,
	}
}

// lexEntries lists the lexical kinds of the notation. Keywords precede the
// identifier so that they win matches of the same length.
func lexEntries() []*mlspec.LexEntry {
	entries := []*mlspec.LexEntry{
		{
			Kind:    "white_space",
			Pattern: `[\u{0009}\u{000A}\u{000D}\u{0020}]+`,
		},
		{
			Kind:    "line_comment",
			Pattern: `//[^\u{000A}\u{000D}]*`,
		},
	}
	for _, kw := range keywords {
		entries = append(entries, &mlspec.LexEntry{
			Kind:    mlspec.LexKindName("kw_" + string(kw)),
			Pattern: mlspec.LexPattern(kw),
		})
	}
	return append(entries, []*mlspec.LexEntry{
		{
			Kind:    "identifier",
			Pattern: `[A-Za-z_][0-9A-Za-z_\-]*`,
		},
		{
			Kind:    "integer",
			Pattern: `[0-9]+`,
		},
		{
			Kind:    "string",
			Pattern: `"[^"\u{000A}\u{000D}]*"`,
		},
		{
			Kind:    "semicolon",
			Pattern: `;`,
		},
		{
			Kind:    "colon",
			Pattern: `:`,
		},
		{
			Kind:    "equals",
			Pattern: `=`,
		},
		{
			Kind:    "block_open",
			Pattern: `\u{007B}`,
		},
		{
			Kind:    "block_close",
			Pattern: `\u{007D}`,
		},
		{
			Kind:    "occurs_open",
			Pattern: `\[`,
		},
		{
			Kind:    "occurs_close",
			Pattern: `\]`,
		},
		{
			Kind:    "range",
			Pattern: `\.\.`,
		},
		{
			Kind:    "at",
			Pattern: `@`,
		},
		{
			Kind:    "optional",
			Pattern: `\?`,
		},
		{
			Kind:    "star",
			Pattern: `\*`,
		},
	}...)
}

var symbolKinds = map[string]tokenKind{
	"semicolon":    tokenKindSemicolon,
	"colon":        tokenKindColon,
	"equals":       tokenKindEquals,
	"block_open":   tokenKindBlockOpen,
	"block_close":  tokenKindBlockClose,
	"occurs_open":  tokenKindOccursOpen,
	"occurs_close": tokenKindOccursClose,
	"range":        tokenKindRange,
	"at":           tokenKindAt,
	"optional":     tokenKindOptional,
	"star":         tokenKindStar,
}

var (
	lexSpecOnce sync.Once
	lexSpec     *mlspec.CompiledLexSpec
	lexSpecErr  error
)

func compiledLexSpec() (*mlspec.CompiledLexSpec, error) {
	lexSpecOnce.Do(func() {
		s, err, cErrs := mlcompiler.Compile(&mlspec.LexSpec{
			Entries: lexEntries(),
		}, mlcompiler.CompressionLevel(mlcompiler.CompressionLevelMax))
		if err != nil {
			if len(cErrs) > 0 {
				var b strings.Builder
				fmt.Fprintf(&b, "%v: %v", cErrs[0].Kind, cErrs[0].Cause)
				for _, cerr := range cErrs[1:] {
					fmt.Fprintf(&b, "\n%v: %v", cerr.Kind, cerr.Cause)
				}
				lexSpecErr = fmt.Errorf("failed to compile the lexical specification: %v", b.String())
				return
			}
			lexSpecErr = err
			return
		}
		lexSpec = s
	})
	return lexSpec, lexSpecErr
}

type lexer struct {
	s   *mlspec.CompiledLexSpec
	d   *mldriver.Lexer
	buf *token
}

func newLexer(src io.Reader) (*lexer, error) {
	s, err := compiledLexSpec()
	if err != nil {
		return nil, err
	}
	d, err := mldriver.NewLexer(mldriver.NewLexSpec(s), src)
	if err != nil {
		return nil, err
	}
	return &lexer{
		s: s,
		d: d,
	}, nil
}

func (l *lexer) next() (*token, error) {
	if l.buf != nil {
		tok := l.buf
		l.buf = nil
		return tok, nil
	}

	var tok *mldriver.Token
	var kind string
	for {
		var err error
		tok, err = l.d.Next()
		if err != nil {
			return nil, err
		}
		if tok.Invalid {
			return newTextToken(tokenKindInvalid, string(tok.Lexeme), newPosition(tok.Row+1, tok.Col+1)), nil
		}
		if tok.EOF {
			return newEOFToken(newPosition(tok.Row+1, tok.Col+1)), nil
		}
		kind = l.s.KindNames[tok.KindID].String()
		if kind == "white_space" || kind == "line_comment" {
			continue
		}
		break
	}

	pos := newPosition(tok.Row+1, tok.Col+1)
	text := string(tok.Lexeme)
	if strings.HasPrefix(kind, "kw_") {
		return newSymbolToken(tokenKind(strings.TrimPrefix(kind, "kw_")), pos), nil
	}
	switch kind {
	case "identifier":
		return newTextToken(tokenKindID, text, pos), nil
	case "integer":
		num, err := strconv.Atoi(text)
		if err != nil {
			return nil, &verr.SpecError{
				Cause:  synErrTooLargeInteger,
				Detail: text,
				Row:    pos.Row,
				Col:    pos.Col,
			}
		}
		return newIntegerToken(num, pos), nil
	case "string":
		return newTextToken(tokenKindString, text[1:len(text)-1], pos), nil
	}
	if k, ok := symbolKinds[kind]; ok {
		return newSymbolToken(k, pos), nil
	}
	return newTextToken(tokenKindInvalid, text, pos), nil
}
