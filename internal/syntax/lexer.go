package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type mode uint8

const (
	modeMarkup mode = iota
	modeCode
)

type token struct {
	kind       Kind
	start, end int
	err        string
}

type lexer struct {
	text string
	pos  int
	mode mode
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.text) {
		return l.text[l.pos+off]
	}
	return 0
}

func (l *lexer) peekRune() (rune, int) {
	if l.pos >= len(l.text) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(l.text[l.pos:])
}

func (l *lexer) next() token {
	start := l.pos
	if l.pos >= len(l.text) {
		return token{kind: End, start: start, end: start}
	}

	tok := func(k Kind) token { return token{kind: k, start: start, end: l.pos} }
	bad := func(msg string) token { return token{kind: Error, start: start, end: l.pos, err: msg} }

	c := l.text[l.pos]
	switch {
	case isWhitespace(c):
		for l.pos < len(l.text) && isWhitespace(l.text[l.pos]) {
			l.pos++
		}
		if l.mode == modeMarkup && Newlines(l.text[start:l.pos]) >= 2 {
			return tok(Parbreak)
		}
		return tok(Space)
	case c == '/' && l.peekByte(1) == '/':
		for l.pos < len(l.text) && l.text[l.pos] != '\n' && l.text[l.pos] != '\r' {
			l.pos++
		}
		return tok(LineComment)
	case c == '/' && l.peekByte(1) == '*':
		l.pos += 2
		depth := 1
		for l.pos < len(l.text) && depth > 0 {
			switch {
			case strings.HasPrefix(l.text[l.pos:], "*/"):
				depth--
				l.pos += 2
			case strings.HasPrefix(l.text[l.pos:], "/*"):
				depth++
				l.pos += 2
			default:
				l.pos++
			}
		}
		if depth > 0 {
			return bad("unclosed comment")
		}
		return tok(BlockComment)
	}

	if l.mode == modeMarkup {
		return l.markup(start)
	}
	return l.code(start)
}

func (l *lexer) markup(start int) token {
	tok := func(k Kind) token { return token{kind: k, start: start, end: l.pos} }
	c := l.text[l.pos]
	switch c {
	case '\\':
		l.pos++
		r, size := l.peekRune()
		if size == 0 || unicode.IsSpace(r) {
			return tok(Linebreak)
		}
		l.pos += size
		return tok(Escape)
	case '`':
		l.pos++
		end := strings.IndexByte(l.text[l.pos:], '`')
		if end < 0 {
			l.pos = len(l.text)
			return token{kind: Error, start: start, end: l.pos, err: "unclosed raw text"}
		}
		l.pos += end + 1
		return tok(Raw)
	case '#':
		if isEmbedStart(l.text[l.pos+1:]) {
			l.pos++
			return tok(Hash)
		}
	case '[':
		l.pos++
		return tok(LeftBracket)
	case ']':
		l.pos++
		return tok(RightBracket)
	case '*', '_':
		if !l.inWord() {
			l.pos++
			if c == '*' {
				return tok(Star)
			}
			return tok(Underscore)
		}
	case '=':
		if l.atLineStart() {
			end := l.pos
			for end < len(l.text) && l.text[end] == '=' {
				end++
			}
			if end == len(l.text) || l.text[end] == ' ' || l.text[end] == '\t' {
				l.pos = end
				return tok(HeadingMarker)
			}
		}
	case '-':
		if l.atLineStart() && (l.peekByte(1) == ' ' || l.peekByte(1) == '\t') {
			l.pos++
			return tok(ListMarker)
		}
	}

	// Text runs to the next character that could start something else.
	_, size := l.peekRune()
	l.pos += size
	for l.pos < len(l.text) {
		c := l.text[l.pos]
		if isWhitespace(c) || strings.IndexByte("\\`#[]", c) >= 0 {
			break
		}
		if c == '/' && (l.peekByte(1) == '/' || l.peekByte(1) == '*') {
			break
		}
		if (c == '*' || c == '_') && !l.inWord() {
			break
		}
		_, size := l.peekRune()
		l.pos += size
	}
	return tok(Text)
}

// inWord reports whether the delimiter at pos sits between two word
// characters, in which case it is plain text.
func (l *lexer) inWord() bool {
	if l.pos == 0 || l.pos+1 >= len(l.text) {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(l.text[:l.pos])
	next, _ := utf8.DecodeRuneInString(l.text[l.pos+1:])
	return isAlnum(prev) && isAlnum(next)
}

func (l *lexer) atLineStart() bool {
	for i := l.pos - 1; i >= 0; i-- {
		switch l.text[i] {
		case ' ', '\t':
			continue
		case '\n', '\r', '[':
			return true
		default:
			return false
		}
	}
	return true
}

func (l *lexer) code(start int) token {
	tok := func(k Kind) token { return token{kind: k, start: start, end: l.pos} }
	r, size := l.peekRune()

	switch {
	case isIdentStart(r):
		l.pos += size
		for l.pos < len(l.text) {
			r, size := l.peekRune()
			if !isIdentContinue(r) {
				break
			}
			l.pos += size
		}
		if k, ok := keywords[l.text[start:l.pos]]; ok {
			return tok(k)
		}
		return tok(Ident)
	case r >= '0' && r <= '9':
		return l.number(start)
	case r == '"':
		return l.str(start)
	}

	l.pos++
	two := func(next byte, k2, k1 Kind) token {
		if l.pos < len(l.text) && l.text[l.pos] == next {
			l.pos++
			return tok(k2)
		}
		return tok(k1)
	}
	switch r {
	case '(':
		return tok(LeftParen)
	case ')':
		return tok(RightParen)
	case '{':
		return tok(LeftBrace)
	case '}':
		return tok(RightBrace)
	case '[':
		return tok(LeftBracket)
	case ']':
		return tok(RightBracket)
	case ',':
		return tok(Comma)
	case ';':
		return tok(Semicolon)
	case ':':
		return tok(Colon)
	case '.':
		return two('.', Dots, Dot)
	case '+':
		return tok(Plus)
	case '-':
		return tok(Minus)
	case '*':
		return tok(Star)
	case '/':
		return tok(Slash)
	case '=':
		return two('=', EqEq, Eq)
	case '<':
		return two('=', LtEq, Lt)
	case '>':
		return two('=', GtEq, Gt)
	case '!':
		if l.pos < len(l.text) && l.text[l.pos] == '=' {
			l.pos++
			return tok(ExclEq)
		}
	}
	l.pos = start + size
	return token{kind: Error, start: start, end: l.pos, err: "the character " + quoteRune(r) + " is not valid in code"}
}

func (l *lexer) number(start int) token {
	digits := func() {
		for l.pos < len(l.text) && l.text[l.pos] >= '0' && l.text[l.pos] <= '9' {
			l.pos++
		}
	}
	digits()
	kind := Int
	if l.peekByte(0) == '.' && l.peekByte(1) >= '0' && l.peekByte(1) <= '9' {
		l.pos++
		digits()
		kind = Float
	}
	if c := l.peekByte(0); (c == 'e' || c == 'E') && (isDigit(l.peekByte(1)) || (l.peekByte(1) == '-' || l.peekByte(1) == '+') && isDigit(l.peekByte(2))) {
		l.pos += 2
		digits()
		kind = Float
	}
	if l.peekByte(0) == '%' {
		l.pos++
		return token{kind: Numeric, start: start, end: l.pos}
	}
	unit := l.pos
	for l.pos < len(l.text) && (l.text[l.pos] >= 'a' && l.text[l.pos] <= 'z') {
		l.pos++
	}
	if l.pos > unit {
		if !validUnit(l.text[unit:l.pos]) {
			return token{kind: Error, start: start, end: l.pos, err: "invalid number suffix: " + l.text[unit:l.pos]}
		}
		return token{kind: Numeric, start: start, end: l.pos}
	}
	return token{kind: kind, start: start, end: l.pos}
}

func validUnit(u string) bool {
	switch u {
	case "pt", "mm", "cm", "in", "em", "fr", "deg", "rad":
		return true
	}
	return false
}

func (l *lexer) str(start int) token {
	l.pos++
	for l.pos < len(l.text) {
		switch l.text[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '"':
			l.pos++
			return token{kind: Str, start: start, end: l.pos}
		}
		l.pos++
	}
	l.pos = len(l.text)
	return token{kind: Error, start: start, end: l.pos, err: "unclosed string"}
}

// Newlines counts line breaks, treating "\r\n" as one.
func Newlines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			n++
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			n++
		}
	}
	return n
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// IsIdent reports whether s is a valid identifier.
func IsIdent(s string) bool {
	for i, r := range s {
		if i == 0 && !isIdentStart(r) || i > 0 && !isIdentContinue(r) {
			return false
		}
	}
	return s != ""
}

func isEmbedStart(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return false
	}
	return isIdentStart(r) || strings.ContainsRune("({[\"", r)
}

func quoteRune(r rune) string {
	return "'" + string(r) + "'"
}
