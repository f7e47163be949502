package stdlib

import (
	"math"
	"strconv"
)

var (
	tAny       = Any()
	tContent   = Type("content")
	tStr       = Type("str")
	tInt       = Type("int")
	tFloat     = Type("float")
	tBool      = Type("bool")
	tNone      = Type("none")
	tAuto      = Type("auto")
	tLength    = Type("length")
	tRelative  = Type("relative")
	tFraction  = Type("fraction")
	tColor     = Type("color")
	tAlignment = Type("alignment")
	tArray     = Type("array")
	tDatetime  = Type("datetime")
	tNum       = Union(tInt, tFloat)
)

func ret(c CastInfo) *CastInfo { return &c }

func pos(name, docs string, input CastInfo) ParamInfo {
	return ParamInfo{Name: name, Docs: docs, Input: input, Required: true}
}

func body(docs string) ParamInfo {
	return pos("body", docs, tContent)
}

func opt(name, docs string, input CastInfo, def string) ParamInfo {
	return ParamInfo{Name: name, Docs: docs, Input: input, Default: def, Named: true, Settable: true}
}

func rest(name, docs string, input CastInfo) ParamInfo {
	return ParamInfo{Name: name, Docs: docs, Input: input, Variadic: true}
}

func fn(name, docs string, returns CastInfo, params ...ParamInfo) Value {
	return Value{
		Kind: KindFunc,
		Name: name,
		Func: &Func{Name: name, Docs: docs, Params: params, Returns: ret(returns)},
	}
}

func color(name, hex string) Value {
	return Value{Kind: KindColor, Name: name, Doc: "The color " + name + ".", Repr: hex}
}

func alignment(name, docs string) Value {
	return Value{Kind: KindAlignment, Name: name, Doc: docs, Repr: name}
}

func constant(name, docs string, v float64) Value {
	return Value{Kind: KindFloat, Name: name, Doc: docs, Repr: strconv.FormatFloat(v, 'g', -1, 64)}
}

func module(name, docs string, members ...Value) Value {
	m := Value{Kind: KindModule, Name: name, Doc: docs, Members: make(map[string]Value, len(members))}
	for _, v := range members {
		m.Members[v.Name] = v
	}
	return m
}

func typ(name, docs string, ctor *Func, members ...Value) Value {
	t := module(name, docs, members...)
	t.Kind = KindType
	t.Func = ctor
	return t
}

var sizing = []ParamInfo{
	opt("width", "The element's width.", Union(tAuto, tRelative), "auto"),
	opt("height", "The element's height.", Union(tAuto, tRelative), "auto"),
	opt("fill", "The element's background color.", Union(tNone, tColor), "none"),
	opt("inset", "How much to pad the element's content.", tRelative, "0pt"),
}

// Build constructs the library. It is called once per compiler instance.
func Build() *Library {
	values := []Value{
		fn("text", "Customizes the look and layout of text in a variety of ways.", tContent,
			opt("font", "A font family name or priority list of font family names.", Union(tStr, tArray), `"Go"`),
			opt("size", "The size of the glyphs.", tLength, "11pt"),
			opt("fill", "The glyph fill paint.", tColor, "black"),
			opt("weight", "The desired thickness of the font's glyphs.", Union(tInt, tStr), `"regular"`),
			opt("style", "The desired font style.", Union(Val(`"normal"`, ""), Val(`"italic"`, ""), Val(`"oblique"`, "")), `"normal"`),
			opt("lang", "An ISO 639-1/2/3 language code.", tStr, `"en"`),
			body("Content in which all text is styled according to the other arguments."),
		),
		fn("heading", "A section heading.", tContent,
			opt("level", "The absolute nesting depth of the heading, starting from one.", Union(tAuto, tInt), "auto"),
			opt("numbering", "How to number the heading.", Union(tNone, tStr), "none"),
			opt("outlined", "Whether the heading should appear in the outline.", tBool, "true"),
			body("The heading's title."),
		),
		fn("par", "Arranges text, spacing and inline-level elements into a paragraph.", tContent,
			opt("justify", "Whether to justify text in its line.", tBool, "false"),
			opt("leading", "The spacing between lines.", tLength, "0.65em"),
			body("The contents of the paragraph."),
		),
		fn("block", "A block-level container.", tContent, append(append([]ParamInfo{}, sizing...),
			opt("breakable", "Whether the block can be broken and continue on the next page.", tBool, "true"),
			ParamInfo{Name: "body", Docs: "The contents of the block.", Input: Union(tNone, tContent), Default: "none"},
		)...),
		fn("box", "An inline-level container that sizes content.", tContent, append(append([]ParamInfo{}, sizing...),
			opt("baseline", "An amount to shift the box's baseline by.", tRelative, "0pt"),
			ParamInfo{Name: "body", Docs: "The contents of the box.", Input: Union(tNone, tContent), Default: "none"},
		)...),
		fn("rect", "A rectangle with optional content.", tContent, append(append([]ParamInfo{}, sizing...),
			opt("stroke", "How to stroke the rectangle.", Union(tNone, tAuto, tLength, tColor), "auto"),
			ParamInfo{Name: "body", Docs: "The content to place into the rectangle.", Input: Union(tNone, tContent), Default: "none"},
		)...),
		fn("strong", "Strongly emphasizes content by increasing the font weight.", tContent,
			opt("delta", "The delta to apply on the font weight.", tInt, "300"),
			body("The content to strongly emphasize."),
		),
		fn("emph", "Emphasizes content by toggling italics.", tContent,
			body("The content to emphasize."),
		),
		fn("link", "Links to a URL or a location in the document.", tContent,
			pos("dest", "The destination the link points to.", tStr),
			ParamInfo{Name: "body", Docs: "The content that should become a link.", Input: tContent},
		),
		fn("image", "A raster or vector graphic.", tContent,
			pos("source", "A path to an image file.", tStr),
			opt("width", "The width of the image.", Union(tAuto, tRelative), "auto"),
			opt("height", "The height of the image.", Union(tAuto, tRelative), "auto"),
			opt("alt", "A text describing the image.", Union(tNone, tStr), "none"),
		),
		fn("list", "A bullet list.", tContent,
			opt("tight", "Whether the items are spaced tightly.", tBool, "true"),
			opt("marker", "The marker which introduces each item.", Union(tContent, tArray), "[•]"),
			rest("children", "The bullet list's children.", tContent),
		),
		fn("table", "A table of items.", tContent,
			opt("columns", "The column sizes.", Union(tAuto, tInt, tRelative, tFraction, tArray), "()"),
			opt("rows", "The row sizes.", Union(tAuto, tInt, tRelative, tFraction, tArray), "()"),
			opt("align", "How to align the cells' content.", Union(tAuto, tAlignment, tArray), "auto"),
			opt("fill", "How to fill the cells.", Union(tNone, tColor), "none"),
			opt("stroke", "How to stroke the cells.", Union(tNone, tLength, tColor), "1pt + black"),
			rest("children", "The contents of the table cells.", tContent),
		),
		fn("grid", "Arranges content in a grid.", tContent,
			opt("columns", "The column sizes.", Union(tAuto, tInt, tRelative, tFraction, tArray), "()"),
			opt("rows", "The row sizes.", Union(tAuto, tInt, tRelative, tFraction, tArray), "()"),
			opt("gutter", "The gaps between rows and columns.", Union(tRelative, tFraction), "0pt"),
			rest("children", "The contents of the grid cells.", tContent),
		),
		fn("page", "Layouts its child onto one or multiple pages.", tContent,
			opt("paper", "A standard paper size to set width and height.", tStr, `"a4"`),
			opt("width", "The width of the page.", Union(tAuto, tLength), "595.28pt"),
			opt("height", "The height of the page.", Union(tAuto, tLength), "841.89pt"),
			opt("margin", "The page's margins.", Union(tAuto, tRelative), "auto"),
			opt("numbering", "How to number the pages.", Union(tNone, tStr), "none"),
			opt("fill", "The page's background fill.", Union(tNone, tAuto, tColor), "auto"),
			body("The contents of the page(s)."),
		),
		fn("pagebreak", "A manual page break.", tContent,
			opt("weak", "If true, the page break is skipped if the current page is already empty.", tBool, "false"),
		),
		fn("align", "Aligns content horizontally and vertically.", tContent,
			ParamInfo{Name: "alignment", Docs: "The alignment along both axes.", Input: tAlignment, Default: "start + top", Settable: true},
			body("The content to align."),
		),
		fn("v", "Inserts vertical spacing into a flow of blocks.", tContent,
			pos("amount", "How much spacing to insert.", Union(tRelative, tFraction)),
			opt("weak", "If true, the spacing collapses at the start or end of a flow.", tBool, "false"),
		),
		fn("h", "Inserts horizontal spacing into a paragraph.", tContent,
			pos("amount", "How much spacing to insert.", Union(tRelative, tFraction)),
			opt("weak", "If true, the spacing collapses at the start or end of a paragraph.", tBool, "false"),
		),
		fn("lorem", "Creates blind text.", tStr,
			pos("words", "The length of the blind text in words.", tInt),
		),
		fn("range", "Creates an array consisting of a sequence of numbers.", tArray,
			ParamInfo{Name: "start", Docs: "The start of the range (inclusive).", Input: tInt, Default: "0"},
			pos("end", "The end of the range (exclusive).", tInt),
			opt("step", "The distance between the generated numbers.", tInt, "1"),
		),
		fn("upper", "Converts a string or content to uppercase.", Union(tStr, tContent),
			pos("text", "The text to convert to uppercase.", Union(tStr, tContent)),
		),
		fn("lower", "Converts a string or content to lowercase.", Union(tStr, tContent),
			pos("text", "The text to convert to lowercase.", Union(tStr, tContent)),
		),
		fn("repr", "Returns the string representation of a value.", tStr,
			pos("value", "The value whose string representation to produce.", tAny),
		),

		typ("str", "A sequence of Unicode codepoints.",
			&Func{Name: "str", Docs: "Converts a value to a string.", Params: []ParamInfo{pos("value", "The value that should be converted to a string.", Union(tInt, tFloat, tStr))}, Returns: ret(tStr)}),
		typ("int", "A whole number.",
			&Func{Name: "int", Docs: "Converts a value to an integer.", Params: []ParamInfo{pos("value", "The value that should be converted to an integer.", Union(tBool, tInt, tFloat, tStr))}, Returns: ret(tInt)}),
		typ("float", "A floating-point number.",
			&Func{Name: "float", Docs: "Converts a value to a float.", Params: []ParamInfo{pos("value", "The value that should be converted to a float.", Union(tBool, tInt, tFloat, tStr))}, Returns: ret(tFloat)}),
		typ("datetime", "Represents a date, a time, or a combination of both.", nil,
			fn("today", "Returns the current date.", tDatetime,
				opt("offset", "An offset to apply to the current UTC date. If set to auto, the offset will be the local offset.", Union(tAuto, tInt), "auto"),
			),
		),

		module("calc", "Module for calculations and processing of numeric values.",
			fn("abs", "Calculates the absolute value of a numeric value.", tNum,
				pos("value", "The value whose absolute value to calculate.", Union(tInt, tFloat, tLength))),
			fn("pow", "Raises a value to some exponent.", tNum,
				pos("base", "The base of the power.", tNum),
				pos("exponent", "The exponent of the power.", tNum)),
			fn("sqrt", "Calculates the square root of a number.", tFloat,
				pos("value", "The number whose square root to calculate. Must be non-negative.", tNum)),
			fn("max", "Determines the maximum of a sequence of values.", tAny,
				rest("values", "The sequence of values from which to extract the maximum. Must not be empty.", tAny)),
			fn("min", "Determines the minimum of a sequence of values.", tAny,
				rest("values", "The sequence of values from which to extract the minimum. Must not be empty.", tAny)),
			fn("floor", "Rounds a number down to the nearest integer.", tInt,
				pos("value", "The number to round down.", tNum)),
			fn("ceil", "Rounds a number up to the nearest integer.", tInt,
				pos("value", "The number to round up.", tNum)),
			fn("round", "Rounds a number to the nearest integer.", tNum,
				pos("value", "The number to round.", tNum),
				opt("digits", "The number of decimal places.", tInt, "0")),
			constant("pi", "The ratio of a circle's circumference to its diameter.", math.Pi),
			constant("tau", "The ratio of a circle's circumference to its radius.", 2*math.Pi),
			constant("e", "Euler's number.", math.E),
		),

		color("black", "#000000"),
		color("gray", "#aaaaaa"),
		color("silver", "#dddddd"),
		color("white", "#ffffff"),
		color("navy", "#001f3f"),
		color("blue", "#0074d9"),
		color("aqua", "#7fdbff"),
		color("teal", "#39cccc"),
		color("eastern", "#239dad"),
		color("purple", "#b10dc9"),
		color("fuchsia", "#f012be"),
		color("maroon", "#85144b"),
		color("red", "#ff4136"),
		color("orange", "#ff851b"),
		color("yellow", "#ffdc00"),
		color("olive", "#3d9970"),
		color("green", "#2ecc40"),
		color("lime", "#01ff70"),

		alignment("start", "Align at the start of the text direction."),
		alignment("end", "Align at the end of the text direction."),
		alignment("left", "Align at the left."),
		alignment("center", "Align in the horizontal middle."),
		alignment("right", "Align at the right."),
		alignment("top", "Align at the top."),
		alignment("horizon", "Align in the vertical middle."),
		alignment("bottom", "Align at the bottom."),
	}
	return newLibrary(values)
}
