package token

import "fmt"

// Kind classifies a lexed template token.
type Kind uint8

const (
	Text Kind = iota
	Ws
	String
	Word
	Section
	Logical
	Separator
	Op
	ParenOpen
	ParenClose
	Comment
	LiteralHint
	Variable
	Boundary
	ContextJoin
	DynamicSelect
)

var kindNames = map[Kind]string{
	Text: "text", Ws: "ws", String: "string", Word: "word",
	Section: "section", Logical: "logical", Separator: "separator",
	Op: "op", ParenOpen: "paren-open", ParenClose: "paren-close",
	Comment: "comment", LiteralHint: "literal-hint", Variable: "variable",
	Boundary: "boundary", ContextJoin: "context-join", DynamicSelect: "dynamic-select",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Token is a half-open [Start,End) slice of the template.
type Token struct {
	Kind  Kind
	Start int
	End   int
	Text  string

	// Canon holds the upper-cased canonical form for Section, Logical,
	// ContextJoin and Word tokens ("GROUP BY", "AND", ",", "IN", ...).
	Canon string

	// Body holds the inner text of Comment and LiteralHint tokens.
	Body string

	// Variable fields.
	Name     string
	Optional bool
	Handler  byte // 0 or 'A'..'Z'
}

// SyntaxError reports a malformed template at a byte offset.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at offset %d: %s", e.Offset, e.Msg)
}
