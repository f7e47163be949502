package syntax

// Kind classifies a syntax node.
type Kind uint8

const (
	End Kind = iota
	Error

	// Markup.
	Markup
	Text
	Space
	Parbreak
	Linebreak
	Escape
	Raw
	Strong
	Emph
	Heading
	HeadingMarker
	ListItem
	ListMarker
	LineComment
	BlockComment

	// Delimiters and punctuation.
	Hash
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket
	LeftParen
	RightParen
	Comma
	Semicolon
	Colon
	Dot
	Dots
	Star
	Underscore
	Plus
	Minus
	Slash
	Eq
	EqEq
	ExclEq
	Lt
	LtEq
	Gt
	GtEq

	// Keywords.
	Not
	And
	Or
	None
	Auto
	Let
	Set
	Import
	Include

	// Code.
	Code
	Ident
	Bool
	Int
	Float
	Numeric
	Str
	CodeBlock
	ContentBlock
	Parenthesized
	Array
	Dict
	Named
	Unary
	Binary
	FieldAccess
	FuncCall
	Args
	Spread
	Closure
	Params
	LetBinding
	SetRule
	ModuleImport
	ImportItems
	ModuleInclude
)

var kindNames = [...]string{
	End:           "end",
	Error:         "syntax error",
	Markup:        "markup",
	Text:          "text",
	Space:         "space",
	Parbreak:      "paragraph break",
	Linebreak:     "line break",
	Escape:        "escape sequence",
	Raw:           "raw text",
	Strong:        "strong content",
	Emph:          "emphasized content",
	Heading:       "heading",
	HeadingMarker: "heading marker",
	ListItem:      "list item",
	ListMarker:    "list marker",
	LineComment:   "line comment",
	BlockComment:  "block comment",
	Hash:          "hash",
	LeftBrace:     "opening brace",
	RightBrace:    "closing brace",
	LeftBracket:   "opening bracket",
	RightBracket:  "closing bracket",
	LeftParen:     "opening paren",
	RightParen:    "closing paren",
	Comma:         "comma",
	Semicolon:     "semicolon",
	Colon:         "colon",
	Dot:           "dot",
	Dots:          "dots",
	Star:          "star",
	Underscore:    "underscore",
	Plus:          "plus",
	Minus:         "minus",
	Slash:         "slash",
	Eq:            "assignment operator",
	EqEq:          "equality operator",
	ExclEq:        "inequality operator",
	Lt:            "less-than operator",
	LtEq:          "less-than or equal operator",
	Gt:            "greater-than operator",
	GtEq:          "greater-than or equal operator",
	Not:           "operator `not`",
	And:           "operator `and`",
	Or:            "operator `or`",
	None:          "`none`",
	Auto:          "`auto`",
	Let:           "keyword `let`",
	Set:           "keyword `set`",
	Import:        "keyword `import`",
	Include:       "keyword `include`",
	Code:          "code",
	Ident:         "identifier",
	Bool:          "boolean",
	Int:           "integer",
	Float:         "float",
	Numeric:       "numeric value",
	Str:           "string",
	CodeBlock:     "code block",
	ContentBlock:  "content block",
	Parenthesized: "group",
	Array:         "array",
	Dict:          "dictionary",
	Named:         "named pair",
	Unary:         "unary expression",
	Binary:        "binary expression",
	FieldAccess:   "field access",
	FuncCall:      "function call",
	Args:          "call arguments",
	Spread:        "spread",
	Closure:       "closure",
	Params:        "closure parameters",
	LetBinding:    "`let` expression",
	SetRule:       "`set` expression",
	ModuleImport:  "`import` expression",
	ImportItems:   "import items",
	ModuleInclude: "`include` expression",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// IsTrivia reports whether nodes of this kind may appear anywhere in code
// without meaning.
func (k Kind) IsTrivia() bool {
	switch k {
	case Space, Parbreak, LineComment, BlockComment:
		return true
	}
	return false
}

var keywords = map[string]Kind{
	"not":     Not,
	"and":     And,
	"or":      Or,
	"none":    None,
	"auto":    Auto,
	"true":    Bool,
	"false":   Bool,
	"let":     Let,
	"set":     Set,
	"import":  Import,
	"include": Include,
}

// IsKeyword reports whether s is reserved and cannot name a binding.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}
