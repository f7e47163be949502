package compiler

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
)

const defaultSize = 11.0

var (
	natives map[string]nativeFunc
	methods map[string]map[string]nativeFunc
)

func init() {
	natives = map[string]nativeFunc{
		"text":      nativeText,
		"heading":   nativeHeading,
		"par":       nativePar,
		"block":     container(ElemBlock),
		"box":       container(ElemBox),
		"rect":      container(ElemRect),
		"strong":    simple(ElemStrong),
		"emph":      simple(ElemEmph),
		"link":      nativeLink,
		"image":     nativeImage,
		"list":      nativeList,
		"table":     cells(ElemTable),
		"grid":      cells(ElemGrid),
		"page":      nativePage,
		"pagebreak": nativePagebreak,
		"align":     nativeAlign,
		"v":         spacing(ElemVSpace),
		"h":         spacing(ElemHSpace),
		"lorem":     nativeLorem,
		"range":     nativeRange,
		"upper":     caseConv(strings.ToUpper),
		"lower":     caseConv(strings.ToLower),
		"repr":      nativeRepr,
		"str":       nativeStr,
		"int":       nativeInt,
		"float":     nativeFloat,

		"datetime.today": nativeToday,

		"calc.abs":   calcAbs,
		"calc.pow":   calcPow,
		"calc.sqrt":  calcSqrt,
		"calc.max":   calcExtremum(1),
		"calc.min":   calcExtremum(-1),
		"calc.floor": calcRound(math.Floor),
		"calc.ceil":  calcRound(math.Ceil),
		"calc.round": calcRoundDigits,
	}

	methods = map[string]map[string]nativeFunc{
		"string": {
			"len":         strLen,
			"contains":    strContains,
			"starts-with": strAffix(strings.HasPrefix),
			"ends-with":   strAffix(strings.HasSuffix),
			"split":       strSplit,
			"trim":        strTrim,
			"replace":     strReplace,
		},
		"array": {
			"len":      arrayLen,
			"at":       arrayAt,
			"first":    arrayEnd(true),
			"last":     arrayEnd(false),
			"join":     arrayJoin,
			"contains": arrayContains,
			"map":      arrayMap,
			"rev":      arrayRev,
		},
		"dictionary": {
			"len":    dictLen,
			"keys":   dictKeys,
			"values": dictValues,
			"at":     dictAt,
		},
		"datetime": {
			"display": dateDisplay,
			"year":    dateField(func(d Date) int { return d.Year }),
			"month":   dateField(func(d Date) int { return d.Month }),
			"day":     dateField(func(d Date) int { return d.Day }),
		},
	}
}

// Casts.

func expected(what string, v Value) error {
	return fmt.Errorf("expected %s, found %s", what, v.Type())
}

func castInt(v Value) (int64, error) {
	if i, ok := v.(Int); ok {
		return int64(i), nil
	}
	return 0, expected("integer", v)
}

func castStr(v Value) (string, error) {
	if s, ok := v.(Str); ok {
		return string(s), nil
	}
	return "", expected("string", v)
}

// castPoints resolves a length, or a plain number of points.
func castPoints(v Value) (float64, error) {
	switch v := v.(type) {
	case Length:
		if pt, ok := v.Points(defaultSize); ok {
			return pt, nil
		}
		if v.Unit == "fr" || v.Unit == "%" {
			return 0, nil
		}
	case Int, Float:
		f, _ := toFloat(v)
		return f, nil
	case autoValue:
		return 0, nil
	}
	return 0, expected("length", v)
}

func castColor(v Value) (string, error) {
	switch v := v.(type) {
	case Color:
		return v.Hex, nil
	case noneValue:
		return "", nil
	}
	return "", expected("color", v)
}

// body returns the last positional argument as content.
func body(args *Args) *Content {
	pos := args.Positional()
	if len(pos) == 0 {
		return Sequence()
	}
	return Display(pos[len(pos)-1].Value)
}

func bodyOrNil(args *Args) *Content {
	if len(args.Positional()) == 0 {
		return nil
	}
	return body(args)
}

func self[T Value](f *Func) T {
	v, _ := f.self.(T)
	return v
}

// Styles.

// style builds the style set by args for the element function name.
func (e *evaluator) style(name string, args *Args) (*Style, error) {
	s := &Style{Font: -1}
	switch name {
	case "text":
		if v, ok := args.Named("font"); ok {
			arg, _ := args.namedArg("font")
			if err := e.selectFont(s, v, arg.Span); err != nil {
				return nil, err
			}
		}
		if v, ok := args.Named("size"); ok {
			pt, err := castPoints(v)
			if err != nil {
				return nil, err
			}
			s.Size = pt
		}
		if v, ok := args.Named("fill"); ok {
			hex, err := castColor(v)
			if err != nil {
				return nil, err
			}
			s.Fill = hex
		}
		if v, ok := args.Named("weight"); ok {
			bold := false
			switch v := v.(type) {
			case Int:
				bold = v >= 600
			case Str:
				bold = v == "bold" || v == "semibold" || v == "extrabold" || v == "black"
			default:
				return nil, expected("integer or string", v)
			}
			s.Bold = &bold
		}
		if v, ok := args.Named("style"); ok {
			str, err := castStr(v)
			if err != nil {
				return nil, err
			}
			italic := str == "italic" || str == "oblique"
			s.Italic = &italic
		}
	case "page":
		ps := &PageStyle{}
		for key, dst := range map[string]*float64{"width": &ps.Width, "height": &ps.Height, "margin": &ps.Margin} {
			if v, ok := args.Named(key); ok {
				pt, err := castPoints(v)
				if err != nil {
					return nil, err
				}
				*dst = pt
			}
		}
		if v, ok := args.Named("paper"); ok {
			str, err := castStr(v)
			if err != nil {
				return nil, err
			}
			w, h, ok := paperSize(str)
			if !ok {
				return nil, fmt.Errorf("unknown paper size %q", str)
			}
			ps.Width, ps.Height = w, h
		}
		if v, ok := args.Named("fill"); ok {
			if _, isAuto := v.(autoValue); !isAuto {
				hex, err := castColor(v)
				if err != nil {
					return nil, err
				}
				ps.Fill = hex
			}
		}
		s.Page = ps
	case "par":
		if v, ok := args.Named("justify"); ok {
			b, isBool := v.(Bool)
			if !isBool {
				return nil, expected("boolean", v)
			}
			j := bool(b)
			s.Justify = &j
		}
	case "heading":
		if v, ok := args.Named("numbering"); ok {
			_, s.Numbered = v.(Str)
		}
	}
	return s, nil
}

// selectFont picks the first available family of a name or priority list
// and warns about every unknown family.
func (e *evaluator) selectFont(s *Style, v Value, span Span) error {
	var families []string
	switch v := v.(type) {
	case Str:
		families = []string{string(v)}
	case Array:
		for _, item := range v {
			str, err := castStr(item)
			if err != nil {
				return err
			}
			families = append(families, str)
		}
	default:
		return expected("string or array", v)
	}
	book := e.world.Book()
	for _, family := range families {
		idx, ok := book.Select(family)
		if !ok {
			e.warn(span, "unknown font family: %s", strings.ToLower(family))
			continue
		}
		if !s.HasFont {
			s.Font, s.HasFont = idx, true
			if f, ok := e.world.Font(idx); ok {
				s.Family = f.Family
			}
		}
	}
	return nil
}

func paperSize(name string) (w, h float64, ok bool) {
	switch strings.ToLower(name) {
	case "a4":
		return 595.28, 841.89, true
	case "a5":
		return 419.53, 595.28, true
	case "us-letter":
		return 612, 792, true
	case "us-legal":
		return 612, 1008, true
	}
	return 0, 0, false
}

// Element functions.

func nativeText(e *evaluator, f *Func, args *Args) (Value, error) {
	s, err := e.style("text", args)
	if err != nil {
		return nil, err
	}
	return styled(s, body(args)), nil
}

func nativeHeading(e *evaluator, f *Func, args *Args) (Value, error) {
	level := 1
	if v, ok := args.Named("level"); ok {
		if _, isAuto := v.(autoValue); !isAuto {
			n, err := castInt(v)
			if err != nil {
				return nil, err
			}
			if n < 1 {
				return nil, fmt.Errorf("level must be at least 1")
			}
			level = int(n)
		}
	}
	b := body(args)
	if b.IsEmpty() {
		e.warn(args.Span, "heading is empty")
	}
	return &Content{Elem: ElemHeading, Level: level, Children: []*Content{b}, Span: args.Span}, nil
}

func nativePar(e *evaluator, f *Func, args *Args) (Value, error) {
	s, err := e.style("par", args)
	if err != nil {
		return nil, err
	}
	return wrap(ElemPar, styled(s, body(args))), nil
}

func container(elem Elem) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		c := wrap(elem, bodyOrNil(args))
		c.Span = args.Span
		var err error
		if v, ok := args.Named("width"); ok {
			if c.Width, err = castPoints(v); err != nil {
				return nil, err
			}
		}
		if v, ok := args.Named("height"); ok {
			if c.Height, err = castPoints(v); err != nil {
				return nil, err
			}
		}
		if v, ok := args.Named("fill"); ok {
			if c.Fill, err = castColor(v); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
}

func simple(elem Elem) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		c := wrap(elem, body(args))
		c.Span = args.Span
		return c, nil
	}
}

func nativeLink(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	dest, err := castStr(pos[0].Value)
	if err != nil {
		return nil, err
	}
	b := TextContent(strings.TrimPrefix(strings.TrimPrefix(dest, "mailto:"), "tel:"))
	if len(pos) > 1 {
		b = Display(pos[1].Value)
	}
	return &Content{Elem: ElemLink, Dest: dest, Children: []*Content{b}, Span: args.Span}, nil
}

var imageFormats = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true, "webp": true}

func nativeImage(e *evaluator, f *Func, args *Args) (Value, error) {
	p, err := castStr(args.Positional()[0].Value)
	if err != nil {
		return nil, err
	}
	id := e.file.Join(p)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(id.Path), "."))
	if !imageFormats[ext] {
		return nil, fmt.Errorf("unknown image format")
	}
	data, err := e.world.File(id)
	if err != nil {
		return nil, err
	}
	c := &Content{Elem: ElemImage, Dest: id.String(), Text: ext, Data: data, Span: args.Span}
	if v, ok := args.Named("width"); ok {
		if c.Width, err = castPoints(v); err != nil {
			return nil, err
		}
	}
	if v, ok := args.Named("height"); ok {
		if c.Height, err = castPoints(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func nativeList(e *evaluator, f *Func, args *Args) (Value, error) {
	list := &Content{Elem: ElemList, Span: args.Span}
	for _, a := range args.Positional() {
		list.Children = append(list.Children, wrap(ElemListItem, Display(a.Value)))
	}
	return list, nil
}

func cells(elem Elem) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		c := &Content{Elem: elem, Columns: 1, Span: args.Span}
		if v, ok := args.Named("columns"); ok {
			switch v := v.(type) {
			case Int:
				c.Columns = int(v)
			case Array:
				c.Columns = len(v)
			case autoValue:
			default:
				c.Columns = 1
			}
			if c.Columns < 1 {
				c.Columns = 1
			}
		}
		for _, a := range args.Positional() {
			c.Children = append(c.Children, Display(a.Value))
		}
		return c, nil
	}
}

func nativePage(e *evaluator, f *Func, args *Args) (Value, error) {
	s, err := e.style("page", args)
	if err != nil {
		return nil, err
	}
	brk := &Content{Elem: ElemPagebreak, Weak: true}
	return Sequence(brk, styled(s, body(args)), &Content{Elem: ElemPagebreak, Weak: true}), nil
}

func nativePagebreak(e *evaluator, f *Func, args *Args) (Value, error) {
	c := &Content{Elem: ElemPagebreak, Span: args.Span}
	if v, ok := args.Named("weak"); ok {
		b, isBool := v.(Bool)
		if !isBool {
			return nil, expected("boolean", v)
		}
		c.Weak = bool(b)
	}
	return c, nil
}

func nativeAlign(e *evaluator, f *Func, args *Args) (Value, error) {
	c := &Content{Elem: ElemAlign, Align: "start", Span: args.Span}
	pos := args.Positional()
	if len(pos) > 1 {
		a, ok := pos[0].Value.(Alignment)
		if !ok {
			return nil, expected("alignment", pos[0].Value)
		}
		c.Align = a
	}
	c.Children = []*Content{body(args)}
	return c, nil
}

func spacing(elem Elem) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		pt, err := castPoints(args.Positional()[0].Value)
		if err != nil {
			return nil, err
		}
		c := &Content{Elem: elem, Amount: pt, Span: args.Span}
		if v, ok := args.Named("weak"); ok {
			b, _ := v.(Bool)
			c.Weak = bool(b)
		}
		return c, nil
	}
}

const loremText = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magnam aliquam quaerat voluptatem. Ut enim aeque doleamus animo, cum corpore dolemus, fieri tamen permagna accessio potest, si aliquod aeternum et infinitum impendere malum nobis opinemur. Quod idem licet transferre in voluptatem, ut postea variari voluptas distinguique possit, augeri amplificarique non possit."

func nativeLorem(e *evaluator, f *Func, args *Args) (Value, error) {
	n, err := castInt(args.Positional()[0].Value)
	if err != nil {
		return nil, err
	}
	words := strings.Fields(loremText)
	out := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, words[int(i)%len(words)])
	}
	return Str(strings.Join(out, " ")), nil
}

func nativeRange(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	var start, end int64
	var err error
	if len(pos) == 1 {
		if end, err = castInt(pos[0].Value); err != nil {
			return nil, err
		}
	} else {
		if start, err = castInt(pos[0].Value); err != nil {
			return nil, err
		}
		if end, err = castInt(pos[1].Value); err != nil {
			return nil, err
		}
	}
	step := int64(1)
	if v, ok := args.Named("step"); ok {
		if step, err = castInt(v); err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, fmt.Errorf("step must not be zero")
		}
	}
	out := Array{}
	for i := start; step > 0 && i < end || step < 0 && i > end; i += step {
		out = append(out, Int(i))
	}
	return out, nil
}

func caseConv(conv func(string) string) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		switch v := args.Positional()[0].Value.(type) {
		case Str:
			return Str(conv(string(v))), nil
		case *Content:
			return v.mapText(conv), nil
		default:
			return nil, expected("string or content", v)
		}
	}
}

func nativeRepr(e *evaluator, f *Func, args *Args) (Value, error) {
	return Str(Repr(args.Positional()[0].Value)), nil
}

func nativeStr(e *evaluator, f *Func, args *Args) (Value, error) {
	switch v := args.Positional()[0].Value.(type) {
	case Str:
		return v, nil
	case Int:
		return Str(strconv.FormatInt(int64(v), 10)), nil
	case Float:
		return Str(strconv.FormatFloat(float64(v), 'g', -1, 64)), nil
	default:
		return nil, expected("integer, float, or string", v)
	}
}

func nativeInt(e *evaluator, f *Func, args *Args) (Value, error) {
	switch v := args.Positional()[0].Value.(type) {
	case Bool:
		if v {
			return Int(1), nil
		}
		return Int(0), nil
	case Int:
		return v, nil
	case Float:
		return Int(int64(v)), nil
	case Str:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %s", string(v))
		}
		return Int(n), nil
	default:
		return nil, expected("boolean, integer, float, or string", v)
	}
}

func nativeFloat(e *evaluator, f *Func, args *Args) (Value, error) {
	switch v := args.Positional()[0].Value.(type) {
	case Bool:
		if v {
			return Float(1), nil
		}
		return Float(0), nil
	case Int:
		return Float(v), nil
	case Float:
		return v, nil
	case Str:
		n, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float: %s", string(v))
		}
		return Float(n), nil
	default:
		return nil, expected("boolean, integer, float, or string", v)
	}
}

func nativeToday(e *evaluator, f *Func, args *Args) (Value, error) {
	var offset *int
	if v, ok := args.Named("offset"); ok {
		if _, isAuto := v.(autoValue); !isAuto {
			n, err := castInt(v)
			if err != nil {
				return nil, err
			}
			hours := int(n)
			offset = &hours
		}
	}
	d, ok := e.world.Today(offset)
	if !ok {
		return None, nil
	}
	return Datetime{Date: d}, nil
}

// calc.

func calcAbs(e *evaluator, f *Func, args *Args) (Value, error) {
	switch v := args.Positional()[0].Value.(type) {
	case Int:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case Float:
		return Float(math.Abs(float64(v))), nil
	case Length:
		return Length{Amount: math.Abs(v.Amount), Unit: v.Unit}, nil
	default:
		return nil, expected("integer, float, or length", v)
	}
}

func calcPow(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	if b, ok := pos[0].Value.(Int); ok {
		if x, ok := pos[1].Value.(Int); ok && x >= 0 {
			out := Int(1)
			for i := Int(0); i < x; i++ {
				out *= b
			}
			return out, nil
		}
	}
	b, bok := toFloat(pos[0].Value)
	x, xok := toFloat(pos[1].Value)
	if !bok || !xok {
		return nil, fmt.Errorf("expected integer or float")
	}
	return Float(math.Pow(b, x)), nil
}

func calcSqrt(e *evaluator, f *Func, args *Args) (Value, error) {
	v := args.Positional()[0].Value
	x, ok := toFloat(v)
	if !ok {
		return nil, expected("integer or float", v)
	}
	if x < 0 {
		return nil, fmt.Errorf("cannot take square root of negative number")
	}
	return Float(math.Sqrt(x)), nil
}

func calcExtremum(sign int) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		pos := args.Positional()
		if len(pos) == 0 {
			return nil, fmt.Errorf("expected at least one value")
		}
		best := pos[0].Value
		for _, a := range pos[1:] {
			c, ok := compare(a.Value, best)
			if !ok {
				return nil, fmt.Errorf("cannot compare %s with %s", Repr(best), Repr(a.Value))
			}
			if c*sign > 0 {
				best = a.Value
			}
		}
		return best, nil
	}
}

func calcRound(round func(float64) float64) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		switch v := args.Positional()[0].Value.(type) {
		case Int:
			return v, nil
		case Float:
			return Int(int64(round(float64(v)))), nil
		default:
			return nil, expected("integer or float", v)
		}
	}
}

func calcRoundDigits(e *evaluator, f *Func, args *Args) (Value, error) {
	digits := int64(0)
	if v, ok := args.Named("digits"); ok {
		var err error
		if digits, err = castInt(v); err != nil {
			return nil, err
		}
	}
	switch v := args.Positional()[0].Value.(type) {
	case Int:
		return v, nil
	case Float:
		scale := math.Pow(10, float64(digits))
		return Float(math.Round(float64(v)*scale) / scale), nil
	default:
		return nil, expected("integer or float", v)
	}
}

// Methods.

func strLen(e *evaluator, f *Func, args *Args) (Value, error) {
	return Int(len(self[Str](f))), nil
}

func strContains(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	if len(pos) != 1 {
		return nil, fmt.Errorf("missing argument: pattern")
	}
	pat, err := castStr(pos[0].Value)
	if err != nil {
		return nil, err
	}
	return Bool(strings.Contains(string(self[Str](f)), pat)), nil
}

func strAffix(test func(s, affix string) bool) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		pos := args.Positional()
		if len(pos) != 1 {
			return nil, fmt.Errorf("missing argument: pattern")
		}
		pat, err := castStr(pos[0].Value)
		if err != nil {
			return nil, err
		}
		return Bool(test(string(self[Str](f)), pat)), nil
	}
}

func strSplit(e *evaluator, f *Func, args *Args) (Value, error) {
	s := string(self[Str](f))
	var parts []string
	if pos := args.Positional(); len(pos) > 0 {
		sep, err := castStr(pos[0].Value)
		if err != nil {
			return nil, err
		}
		parts = strings.Split(s, sep)
	} else {
		parts = strings.Fields(s)
	}
	out := make(Array, len(parts))
	for i, p := range parts {
		out[i] = Str(p)
	}
	return out, nil
}

func strTrim(e *evaluator, f *Func, args *Args) (Value, error) {
	return Str(strings.TrimSpace(string(self[Str](f)))), nil
}

func strReplace(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	if len(pos) != 2 {
		return nil, fmt.Errorf("expected a pattern and a replacement")
	}
	from, err := castStr(pos[0].Value)
	if err != nil {
		return nil, err
	}
	to, err := castStr(pos[1].Value)
	if err != nil {
		return nil, err
	}
	return Str(strings.ReplaceAll(string(self[Str](f)), from, to)), nil
}

func arrayLen(e *evaluator, f *Func, args *Args) (Value, error) {
	return Int(len(self[Array](f))), nil
}

func index(n int, v Value) (int, error) {
	i, err := castInt(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, fmt.Errorf("array index out of bounds (index: %d, len: %d)", i, n)
	}
	return int(i), nil
}

func arrayAt(e *evaluator, f *Func, args *Args) (Value, error) {
	arr := self[Array](f)
	pos := args.Positional()
	if len(pos) != 1 {
		return nil, fmt.Errorf("missing argument: index")
	}
	i, err := index(len(arr), pos[0].Value)
	if err != nil {
		if def, ok := args.Named("default"); ok {
			return def, nil
		}
		return nil, err
	}
	return arr[i], nil
}

func arrayEnd(first bool) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		arr := self[Array](f)
		if len(arr) == 0 {
			return nil, fmt.Errorf("array is empty")
		}
		if first {
			return arr[0], nil
		}
		return arr[len(arr)-1], nil
	}
}

func arrayJoin(e *evaluator, f *Func, args *Args) (Value, error) {
	arr := self[Array](f)
	var sep Value = None
	if pos := args.Positional(); len(pos) > 0 {
		sep = pos[0].Value
	}
	var out Value = None
	for i, item := range arr {
		var err error
		if i > 0 {
			if out, err = join(out, sep); err != nil {
				return nil, err
			}
		}
		if out, err = join(out, item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func arrayContains(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	if len(pos) != 1 {
		return nil, fmt.Errorf("missing argument: value")
	}
	for _, item := range self[Array](f) {
		if Equal(item, pos[0].Value) {
			return Bool(true), nil
		}
	}
	return Bool(false), nil
}

func arrayMap(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	if len(pos) != 1 {
		return nil, fmt.Errorf("missing argument: mapper")
	}
	arr := self[Array](f)
	out := make(Array, 0, len(arr))
	for _, item := range arr {
		v, err := e.call(pos[0].Value, &Args{Span: args.Span, Items: []Arg{{Value: item, Span: args.Span}}})
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func arrayRev(e *evaluator, f *Func, args *Args) (Value, error) {
	arr := self[Array](f)
	out := make(Array, len(arr))
	for i, item := range arr {
		out[len(arr)-1-i] = item
	}
	return out, nil
}

func dictLen(e *evaluator, f *Func, args *Args) (Value, error) {
	return Int(len(self[*Dict](f).Keys())), nil
}

func dictKeys(e *evaluator, f *Func, args *Args) (Value, error) {
	out := Array{}
	for _, k := range self[*Dict](f).Keys() {
		out = append(out, Str(k))
	}
	return out, nil
}

func dictValues(e *evaluator, f *Func, args *Args) (Value, error) {
	d := self[*Dict](f)
	out := Array{}
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		out = append(out, v)
	}
	return out, nil
}

func dictAt(e *evaluator, f *Func, args *Args) (Value, error) {
	pos := args.Positional()
	if len(pos) != 1 {
		return nil, fmt.Errorf("missing argument: key")
	}
	key, err := castStr(pos[0].Value)
	if err != nil {
		return nil, err
	}
	if v, ok := self[*Dict](f).Get(key); ok {
		return v, nil
	}
	if def, ok := args.Named("default"); ok {
		return def, nil
	}
	return nil, fmt.Errorf("dictionary does not contain key %q", key)
}

func dateDisplay(e *evaluator, f *Func, args *Args) (Value, error) {
	return Str(self[Datetime](f).String()), nil
}

func dateField(get func(Date) int) nativeFunc {
	return func(e *evaluator, f *Func, args *Args) (Value, error) {
		return Int(get(self[Datetime](f).Date)), nil
	}
}
