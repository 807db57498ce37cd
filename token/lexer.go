package token

import "strings"

// DefaultPrefix is the variable prefix character used when none is configured.
const DefaultPrefix byte = '@'

// sectionWords terminate segments exclusively. Multi-word keywords are
// assembled by the lexer before lookup. FETCH is deliberately absent so that
// OFFSET ... FETCH NEXT ... shares a single segment.
var sectionWords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP BY": true,
	"HAVING": true, "ORDER BY": true, "WITH": true,
	"UNION": true, "UNION ALL": true, "INTERSECT": true, "EXCEPT": true,
	"JOIN": true, "INNER JOIN": true, "LEFT JOIN": true, "RIGHT JOIN": true,
	"FULL JOIN": true, "CROSS JOIN": true, "LEFT OUTER JOIN": true,
	"RIGHT OUTER JOIN": true, "FULL OUTER JOIN": true,
	"ON": true, "INSERT": true, "INTO": true, "VALUES": true,
	"UPDATE": true, "SET": true, "DELETE": true,
	"CASE": true, "WHEN": true, "THEN": true, "ELSE": true, "END": true,
	"OFFSET": true,
}

var logicalWords = map[string]bool{"AND": true, "OR": true, "NOT": true}

// opBytes are lexed as operator runs. '/' and '*' are handled separately so
// block comments win.
const opBytes = "=<>!+-*/%^~|"

type lexer struct {
	src    string
	prefix byte
	pos    int
	toks   []Token
}

// Lex tokenises a template. The prefix byte configures the variable sigil.
func Lex(src string, prefix byte) ([]Token, error) {
	if prefix == 0 {
		prefix = DefaultPrefix
	}
	l := &lexer{src: src, prefix: prefix, toks: make([]Token, 0, len(src)/4+8)}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.toks, nil
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isWs(c):
			l.lexWs()
		case c == '\'':
			if err := l.lexString(); err != nil {
				return err
			}
		case c == '/' && l.peek(1) == '*':
			if err := l.lexComment(); err != nil {
				return err
			}
		case c == '?':
			if err := l.lexQuestion(); err != nil {
				return err
			}
		case c == l.prefix:
			if err := l.lexVariable(l.pos); err != nil {
				return err
			}
		case c == '&':
			l.lexAmp()
		case c == '(':
			l.emit(ParenOpen, l.pos, l.pos+1)
			l.pos++
		case c == ')':
			l.emit(ParenClose, l.pos, l.pos+1)
			l.pos++
		case c == ',':
			t := l.emit(Separator, l.pos, l.pos+1)
			t.Canon = ","
			l.pos++
		case isIdentStart(c):
			l.lexWord()
		case strings.IndexByte(opBytes, c) >= 0:
			l.lexOp()
		default:
			l.lexText()
		}
	}
	return nil
}

func (l *lexer) emit(k Kind, start, end int) *Token {
	l.toks = append(l.toks, Token{Kind: k, Start: start, End: end, Text: l.src[start:end]})
	return &l.toks[len(l.toks)-1]
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *lexer) lexWs() {
	start := l.pos
	for l.pos < len(l.src) && isWs(l.src[l.pos]) {
		l.pos++
	}
	l.emit(Ws, start, l.pos)
}

func (l *lexer) lexString() error {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		if l.src[l.pos] == '\'' {
			if l.peek(1) == '\'' {
				l.pos += 2
				continue
			}
			l.pos++
			l.emit(String, start, l.pos)
			return nil
		}
		l.pos++
	}
	return &SyntaxError{Offset: start, Msg: "unterminated string literal"}
}

func (l *lexer) lexComment() error {
	start := l.pos
	end := strings.Index(l.src[l.pos+2:], "*/")
	if end < 0 {
		return &SyntaxError{Offset: start, Msg: "unterminated comment"}
	}
	body := l.src[l.pos+2 : l.pos+2+end]
	l.pos += 2 + end + 2
	if strings.HasPrefix(body, "~") {
		t := l.emit(LiteralHint, start, l.pos)
		t.Body = body[1:]
		return nil
	}
	t := l.emit(Comment, start, l.pos)
	t.Body = strings.TrimSpace(body)
	return nil
}

// lexQuestion handles ??? (forced boundary), ?SELECT (dynamic projection),
// ?@Var (optional variable) and a lone ? (plain text).
func (l *lexer) lexQuestion() error {
	if l.peek(1) == '?' && l.peek(2) == '?' {
		l.emit(Boundary, l.pos, l.pos+3)
		l.pos += 3
		return nil
	}
	if l.peek(1) == l.prefix {
		return l.lexVariable(l.pos)
	}
	if word, end := l.wordAt(l.pos + 1); strings.ToUpper(word) == "SELECT" {
		t := l.emit(DynamicSelect, l.pos, end)
		t.Canon = "SELECT"
		l.pos = end
		return nil
	}
	l.emit(Op, l.pos, l.pos+1)
	l.pos++
	return nil
}

// lexVariable lexes [?]prefix ident [_letter] starting at start.
func (l *lexer) lexVariable(start int) error {
	p := start
	optional := false
	if l.src[p] == '?' {
		optional = true
		p++
	}
	p++ // prefix byte
	if p >= len(l.src) || !isIdentStart(l.src[p]) {
		return &SyntaxError{Offset: start, Msg: "malformed variable"}
	}
	nameStart := p
	for p < len(l.src) && isIdentPart(l.src[p]) {
		p++
	}
	name := l.src[nameStart:p]
	var letter byte
	if n := len(name); n >= 3 && name[n-2] == '_' && isAsciiLetter(name[n-1]) {
		letter = upper(name[n-1])
		name = name[:n-2]
	}
	t := l.emit(Variable, start, p)
	t.Name = name
	t.Optional = optional
	t.Handler = letter
	l.pos = p
	return nil
}

func (l *lexer) lexAmp() {
	if word, end := l.wordAt(l.pos + 1); word != "" {
		canon := strings.ToUpper(word)
		if canon == "AND" || canon == "OR" {
			t := l.emit(ContextJoin, l.pos, end)
			t.Canon = canon
			l.pos = end
			return
		}
	}
	if l.peek(1) == ',' {
		t := l.emit(ContextJoin, l.pos, l.pos+2)
		t.Canon = ","
		l.pos += 2
		return
	}
	l.emit(Op, l.pos, l.pos+1)
	l.pos++
}

func (l *lexer) lexWord() {
	start := l.pos
	word, end := l.wordAt(l.pos)
	l.pos = end
	canon := strings.ToUpper(word)

	// Assemble multi-word keywords before classification.
	switch canon {
	case "GROUP", "ORDER":
		if next, nend := l.nextWord(); strings.ToUpper(next) == "BY" {
			canon += " BY"
			l.pos = nend
		}
	case "UNION":
		if next, nend := l.nextWord(); strings.ToUpper(next) == "ALL" {
			canon += " ALL"
			l.pos = nend
		}
	case "INNER", "LEFT", "RIGHT", "FULL", "CROSS":
		save := l.pos
		next, nend := l.nextWord()
		if strings.ToUpper(next) == "OUTER" {
			canon += " OUTER"
			l.pos = nend
			next, nend = l.nextWord()
		}
		if strings.ToUpper(next) == "JOIN" {
			canon += " JOIN"
			l.pos = nend
		} else if strings.HasSuffix(canon, " OUTER") {
			canon = strings.TrimSuffix(canon, " OUTER")
			l.pos = save
		}
	}

	t := l.emit(Text, start, l.pos)
	t.Canon = canon
	switch {
	case sectionWords[canon]:
		t.Kind = Section
	case logicalWords[canon]:
		t.Kind = Logical
	default:
		t.Kind = Word
	}
}

// nextWord peeks over a single whitespace run for a following word.
func (l *lexer) nextWord() (string, int) {
	p := l.pos
	for p < len(l.src) && isWs(l.src[p]) {
		p++
	}
	if p == l.pos {
		return "", l.pos
	}
	if p < len(l.src) && isIdentStart(l.src[p]) {
		return l.wordAt(p)
	}
	return "", l.pos
}

// wordAt reads an identifier at p, returning it and the index past its end.
func (l *lexer) wordAt(p int) (string, int) {
	if p >= len(l.src) || !isIdentStart(l.src[p]) {
		return "", p
	}
	start := p
	for p < len(l.src) && isIdentPart(l.src[p]) {
		p++
	}
	return l.src[start:p], p
}

func (l *lexer) lexOp() {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if strings.IndexByte(opBytes, c) < 0 {
			break
		}
		if c == '/' && l.peek(1) == '*' {
			break
		}
		l.pos++
	}
	l.emit(Op, start, l.pos)
}

// lexText consumes a run of bytes with no lexical meaning (digits, dots,
// quoted identifiers, etc).
func (l *lexer) lexText() {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if isWs(c) || c == '\'' || c == '?' || c == l.prefix || c == '&' ||
			c == '(' || c == ')' || c == ',' || isIdentStart(c) ||
			strings.IndexByte(opBytes, c) >= 0 {
			break
		}
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	l.emit(Text, start, l.pos)
}

func isWs(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || (c >= '0' && c <= '9') }

func isAsciiLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
