package syntax

import "strings"

// green is an intermediate node without absolute positions. Parsing
// produces green nodes which are then laid out into the arena.
type green struct {
	kind     Kind
	len      int
	children []green
	msg      string
}

type state struct {
	mode     mode
	embedded bool
}

type parser struct {
	lx    lexer
	cur   token
	nodes []green

	// embedded is set while parsing an expression that follows a hash in
	// markup. A line break ends such an expression.
	embedded bool
	blocks   int
}

// Parse parses text as a markup file. Parsing never fails: problems are
// recorded as Error nodes in the tree.
func Parse(text string) *Tree {
	p := &parser{lx: lexer{text: text, mode: modeMarkup}}
	p.lex()
	p.markup(func() bool { return false })
	for !p.at(End) {
		p.eat()
	}
	root := green{kind: Markup, children: p.nodes}
	for _, c := range p.nodes {
		root.len += c.len
	}
	return build(text, root)
}

func (p *parser) lex() {
	p.cur = p.lx.next()
}

// kind is the kind of the current token, where a line break ends an
// embedded expression.
func (p *parser) kind() Kind {
	if p.lx.mode == modeCode && p.cur.kind.IsTrivia() {
		return End
	}
	return p.cur.kind
}

func (p *parser) at(k Kind) bool { return p.kind() == k }

// directlyAt is at without trivia between the previous node and the
// current token.
func (p *parser) directlyAt(k Kind) bool {
	if !p.at(k) {
		return false
	}
	if len(p.nodes) == 0 {
		return true
	}
	return !p.nodes[len(p.nodes)-1].kind.IsTrivia()
}

func (p *parser) text() string {
	return p.lx.text[p.cur.start:p.cur.end]
}

func (p *parser) marker() int { return len(p.nodes) }

func (p *parser) push() {
	p.nodes = append(p.nodes, green{kind: p.cur.kind, len: p.cur.end - p.cur.start, msg: p.cur.err})
}

// eat consumes the current token. In code, trivia after it is consumed too.
func (p *parser) eat() {
	p.push()
	p.lex()
	p.skip()
}

func (p *parser) skip() {
	if p.lx.mode != modeCode {
		return
	}
	for p.cur.kind.IsTrivia() {
		if p.embedded && p.cur.kind == Space && Newlines(p.lx.text[p.cur.start:p.cur.end]) > 0 {
			return
		}
		p.push()
		p.lex()
	}
}

func (p *parser) eatIf(k Kind) bool {
	if p.at(k) {
		p.eat()
		return true
	}
	return false
}

func (p *parser) expect(k Kind) bool {
	if p.eatIf(k) {
		return true
	}
	p.expected(k.String())
	return false
}

func (p *parser) expected(what string) {
	p.nodes = append(p.nodes, green{kind: Error, msg: "expected " + what})
}

// unexpected consumes the current token as an error.
func (p *parser) unexpected() {
	msg := "unexpected " + p.cur.kind.String()
	if p.cur.err != "" {
		msg = p.cur.err
	}
	p.cur.kind = Error
	p.cur.err = msg
	p.eat()
}

// wrap turns the nodes from m onward into one node. In code, trailing
// trivia stays outside.
func (p *parser) wrap(m int, k Kind) {
	to := len(p.nodes)
	if p.lx.mode == modeCode {
		for to > m && p.nodes[to-1].kind.IsTrivia() {
			to--
		}
	}
	children := make([]green, to-m)
	copy(children, p.nodes[m:to])
	n := green{kind: k, children: children}
	for _, c := range children {
		n.len += c.len
	}
	rest := append([]green(nil), p.nodes[to:]...)
	p.nodes = append(append(p.nodes[:m], n), rest...)
}

// enter switches lexer modes, re-lexing the current token.
func (p *parser) enter(m mode, embedded bool) state {
	old := state{mode: p.lx.mode, embedded: p.embedded}
	p.lx.mode = m
	p.embedded = embedded
	p.relex()
	return old
}

func (p *parser) restore(s state) {
	p.lx.mode = s.mode
	p.embedded = s.embedded
	p.relex()
}

func (p *parser) relex() {
	p.lx.pos = p.cur.start
	p.lex()
	p.skip()
}

func (p *parser) atNewline() bool {
	switch p.cur.kind {
	case Space, Parbreak:
		return Newlines(p.text()) > 0
	}
	return false
}

// Markup.

func (p *parser) markup(stop func() bool) {
	depth := 0
	for !p.at(End) && !stop() {
		switch p.cur.kind {
		case LeftBracket:
			depth++
			p.cur.kind = Text
			p.eat()
		case RightBracket:
			if depth > 0 {
				depth--
				p.cur.kind = Text
				p.eat()
				continue
			}
			if p.blocks > 0 {
				return
			}
			p.unexpected()
		default:
			p.markupNode()
		}
	}
}

func (p *parser) markupNode() {
	m := p.marker()
	switch p.cur.kind {
	case Star:
		p.delimited(Star, Strong)
	case Underscore:
		p.delimited(Underscore, Emph)
	case HeadingMarker, ListMarker:
		kind := Heading
		if p.cur.kind == ListMarker {
			kind = ListItem
		}
		p.eat()
		if p.at(Space) && !p.atNewline() {
			p.eat()
		}
		body := p.marker()
		p.markup(func() bool { return p.atNewline() || p.blocks > 0 && p.at(RightBracket) })
		p.wrap(body, Markup)
		p.wrap(m, kind)
	case Hash:
		p.eat()
		p.embeddedExpr()
	case Error:
		p.unexpected()
	default:
		p.eat()
	}
}

func (p *parser) delimited(delim, kind Kind) {
	m := p.marker()
	p.eat()
	body := p.marker()
	p.markup(func() bool {
		return p.at(delim) || p.at(Parbreak) || p.blocks > 0 && p.at(RightBracket)
	})
	p.wrap(body, Markup)
	if !p.eatIf(delim) {
		p.nodes = append(p.nodes, green{kind: Error, msg: "unclosed delimiter"})
	}
	p.wrap(m, kind)
}

func (p *parser) embeddedExpr() {
	st := p.enter(modeCode, true)
	switch p.kind() {
	case Let, Set, Import, Include:
		p.expr(0, false)
	default:
		p.expr(0, true)
	}
	if p.directlyAt(Semicolon) {
		p.push()
		p.cur.start = p.cur.end
	}
	p.restore(st)
}

// Code.

func (p *parser) code() {
	for !p.at(End) && !p.at(RightBrace) {
		before := p.cur.start
		p.expr(0, false)
		for p.eatIf(Semicolon) {
		}
		if p.cur.start == before && !p.at(End) && !p.at(RightBrace) {
			p.unexpected()
		}
	}
}

func (p *parser) codeBlock() {
	m := p.marker()
	st := p.enter(modeCode, false)
	p.push()
	p.lex()
	// leading trivia belongs to the body
	body := p.marker()
	p.skip()
	p.code()
	p.wrap(body, Code)
	p.restore(st)
	p.expect(RightBrace)
	p.wrap(m, CodeBlock)
}

func (p *parser) contentBlock() {
	m := p.marker()
	st := p.enter(modeMarkup, false)
	p.blocks++
	p.eat()
	body := p.marker()
	p.markup(func() bool { return false })
	p.wrap(body, Markup)
	p.blocks--
	p.restore(st)
	p.expect(RightBracket)
	p.wrap(m, ContentBlock)
}

func binaryOp(k Kind) (prec int, ok bool) {
	switch k {
	case Or:
		return 1, true
	case And:
		return 2, true
	case EqEq, ExclEq, Lt, LtEq, Gt, GtEq:
		return 4, true
	case Plus, Minus:
		return 5, true
	case Star, Slash:
		return 6, true
	}
	return 0, false
}

func (p *parser) expr(min int, atomic bool) {
	m := p.marker()
	switch {
	case !atomic && p.at(Not):
		p.eat()
		p.expr(3, false)
		p.wrap(m, Unary)
	case !atomic && (p.at(Minus) || p.at(Plus)):
		p.eat()
		p.expr(7, false)
		p.wrap(m, Unary)
	default:
		p.primary(atomic)
	}
	if atomic {
		return
	}
	for {
		prec, ok := binaryOp(p.kind())
		if !ok || prec < min {
			return
		}
		p.eat()
		p.expr(prec+1, false)
		p.wrap(m, Binary)
	}
}

func (p *parser) primary(atomic bool) {
	m := p.marker()
	switch p.kind() {
	case Ident, Int, Float, Numeric, Str, Bool, None, Auto:
		p.eat()
	case LeftParen:
		p.parenthesized()
	case LeftBrace:
		p.codeBlock()
	case LeftBracket:
		p.contentBlock()
	case Let:
		p.letBinding()
		return
	case Set:
		p.setRule()
		return
	case Import:
		p.moduleImport()
		return
	case Include:
		p.moduleInclude()
		return
	case End, RightParen, RightBrace, RightBracket, Comma, Semicolon:
		p.expected("expression")
		return
	default:
		p.unexpected()
		return
	}
	p.postfix(m)
}

func (p *parser) postfix(m int) {
	for {
		switch {
		case p.directlyAt(Dot) && p.identAt(p.cur.end):
			p.eat()
			p.expect(Ident)
			p.wrap(m, FieldAccess)
		case p.directlyAt(LeftParen) || p.directlyAt(LeftBracket):
			p.args()
			p.wrap(m, FuncCall)
		default:
			return
		}
	}
}

func (p *parser) identAt(off int) bool {
	return IsIdent(firstIdent(p.lx.text[off:]))
}

func firstIdent(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !isIdentContinue(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}

// namedAhead reports whether the current identifier is followed by a colon.
func (p *parser) namedAhead() bool {
	if !p.at(Ident) {
		return false
	}
	rest := strings.TrimLeft(p.lx.text[p.cur.end:], " \t\r\n")
	return strings.HasPrefix(rest, ":")
}

func (p *parser) named() {
	m := p.marker()
	p.eat()
	p.expect(Colon)
	p.expr(0, false)
	p.wrap(m, Named)
}

func (p *parser) args() {
	m := p.marker()
	if p.at(LeftParen) {
		st := p.enter(modeCode, false)
		p.eat()
		for !p.at(RightParen) && !p.at(End) {
			switch {
			case p.namedAhead():
				p.named()
			case p.at(Dots):
				p.spread()
			default:
				p.expr(0, false)
			}
			if !p.at(RightParen) && !p.eatIf(Comma) {
				p.expected("comma")
				if !p.at(End) {
					p.unexpected()
				}
			}
		}
		p.restore(st)
		p.expect(RightParen)
	}
	for p.directlyAt(LeftBracket) {
		p.contentBlock()
	}
	p.wrap(m, Args)
}

func (p *parser) spread() {
	m := p.marker()
	p.eat()
	p.expr(0, false)
	p.wrap(m, Spread)
}

func (p *parser) parenthesized() {
	m := p.marker()
	st := p.enter(modeCode, false)
	p.eat()
	items, comma, named := 0, false, false
	if p.at(Colon) {
		p.eat()
		named = true
	}
	for !p.at(RightParen) && !p.at(End) {
		if p.namedAhead() {
			p.named()
			named = true
		} else {
			p.expr(0, false)
		}
		items++
		if p.eatIf(Comma) {
			comma = true
		} else if !p.at(RightParen) {
			p.expected("comma")
			if !p.at(End) {
				p.unexpected()
			}
		}
	}
	p.restore(st)
	p.expect(RightParen)
	switch {
	case named:
		p.wrap(m, Dict)
	case items == 1 && !comma:
		p.wrap(m, Parenthesized)
	default:
		p.wrap(m, Array)
	}
}

func (p *parser) letBinding() {
	m := p.marker()
	p.eat()
	if !p.at(Ident) {
		p.expected("identifier")
		p.wrap(m, LetBinding)
		return
	}
	closure := p.marker()
	p.eat()
	if p.directlyAt(LeftParen) {
		p.params()
		if p.expect(Eq) {
			p.expr(0, false)
		}
		p.wrap(closure, Closure)
	} else if p.eatIf(Eq) {
		p.expr(0, false)
	}
	p.wrap(m, LetBinding)
}

func (p *parser) params() {
	m := p.marker()
	st := p.enter(modeCode, false)
	p.eat()
	for !p.at(RightParen) && !p.at(End) {
		switch {
		case p.namedAhead():
			p.named()
		case p.at(Ident):
			p.eat()
		case p.at(Dots):
			sm := p.marker()
			p.eat()
			p.expect(Ident)
			p.wrap(sm, Spread)
		default:
			p.unexpected()
		}
		if !p.at(RightParen) && !p.eatIf(Comma) {
			p.expected("comma")
		}
	}
	p.restore(st)
	p.expect(RightParen)
	p.wrap(m, Params)
}

func (p *parser) setRule() {
	m := p.marker()
	p.eat()
	target := p.marker()
	if p.expect(Ident) {
		for p.directlyAt(Dot) && p.identAt(p.cur.end) {
			p.eat()
			p.expect(Ident)
			p.wrap(target, FieldAccess)
		}
		if p.directlyAt(LeftParen) {
			p.args()
		} else {
			p.expected("argument list")
		}
	}
	p.wrap(m, SetRule)
}

func (p *parser) moduleImport() {
	m := p.marker()
	p.eat()
	p.expr(0, false)
	if p.eatIf(Colon) {
		if !p.eatIf(Star) {
			items := p.marker()
			for p.at(Ident) {
				p.eat()
				if !p.eatIf(Comma) {
					break
				}
			}
			if items == p.marker() {
				p.expected("import items")
			}
			p.wrap(items, ImportItems)
		}
	}
	p.wrap(m, ModuleImport)
}

func (p *parser) moduleInclude() {
	m := p.marker()
	p.eat()
	p.expr(0, false)
	p.wrap(m, ModuleInclude)
}
