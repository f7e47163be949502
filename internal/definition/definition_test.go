package definition

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/fonts"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
)

var lib = stdlib.Build()

// storeWorld is the part of a compiler world that name resolution needs.
type storeWorld struct {
	store *source.Store
}

func (w storeWorld) Library() *stdlib.Library { return lib }
func (w storeWorld) Book() *fonts.Book        { return fonts.NewBook(nil) }
func (w storeWorld) Main() source.FileID      { return source.FileID{} }

func (w storeWorld) Source(id source.FileID) (*source.Buffer, error) {
	buf, ok := w.store.Get(id)
	if !ok {
		return nil, diag.NewFileError(diag.NotFound, id.Path)
	}
	return buf, nil
}

func (w storeWorld) File(id source.FileID) ([]byte, error) {
	buf, err := w.Source(id)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w storeWorld) Font(int) (*fonts.Font, bool)    { return nil, false }
func (w storeWorld) Today(*int) (compiler.Date, bool) { return compiler.Date{}, false }

func setup(files map[string]string) *Resolver {
	store := source.NewStore()
	for p, text := range files {
		store.Add(source.ID(p), text)
	}
	return NewResolver(store, storeWorld{store: store})
}

func pos(line, column int) position.Position {
	return position.Position{Line: line, Column: column}
}

func rng(line, start, end int) *position.Range {
	return &position.Range{Start: pos(line, start), End: pos(line, end)}
}

var mainID = source.ID("/main.typ")

func TestResolveUserDefinitions(t *testing.T) {
	src := strings.Join([]string{
		"// The answer.",
		"// Really.",
		"#let answer = 42",
		"",
		"// unrelated",
		"",
		"// Adds things.",
		"#let add(",
		"  // First.",
		"  a,",
		"  // Second",
		"  // and more.",
		"  b: 1,",
		"  ..rest,",
		") = a + b",
		"",
		"// far away",
		"",
		"",
		"#let bare = none",
		"#answer #add(1) #bare",
	}, "\n")
	r := setup(map[string]string{"/main.typ": src})

	tests := []struct {
		name string
		at   position.Position
		want *Result
	}{
		{
			name: "value",
			at:   pos(21, 2),
			want: &Result{
				Name:             "answer",
				Docs:             "The answer.\nReally.",
				Parameters:       []Parameter{},
				DeclarationRange: rng(3, 6, 12),
				File:             mainID,
			},
		},
		{
			name: "function",
			at:   pos(21, 10),
			want: &Result{
				Name:       "add",
				Docs:       "Adds things.",
				IsCallable: true,
				Parameters: []Parameter{
					{Name: "a", Docs: "First."},
					{Name: "b", Docs: "Second\nand more."},
					{Name: "rest"},
				},
				DeclarationRange: rng(8, 6, 9),
				File:             mainID,
			},
		},
		{
			name: "blank lines cut docs off",
			at:   pos(21, 18),
			want: &Result{
				Name:             "bare",
				Parameters:       []Parameter{},
				DeclarationRange: rng(20, 6, 10),
				File:             mainID,
			},
		},
		{
			name: "declaration itself",
			at:   pos(3, 7),
			want: &Result{
				Name:             "answer",
				Docs:             "The answer.\nReally.",
				Parameters:       []Parameter{},
				DeclarationRange: rng(3, 6, 12),
				File:             mainID,
			},
		},
		{name: "parameter is not a binding", at: pos(15, 5), want: nil},
		{name: "plain text", at: pos(1, 5), want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveAt(mainID, tt.at)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDocComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		at   position.Position
		want *Result
	}{
		{
			name: "first binding in code block",
			src:  "#{\n  // The q.\n  let q = 1\n  // The w.\n  let w = 2\n  q + w\n}",
			at:   pos(6, 3),
			want: &Result{
				Name:             "q",
				Docs:             "The q.",
				Parameters:       []Parameter{},
				DeclarationRange: rng(3, 7, 8),
				File:             mainID,
			},
		},
		{
			name: "later binding in code block",
			src:  "#{\n  // The q.\n  let q = 1\n  // The w.\n  let w = 2\n  q + w\n}",
			at:   pos(6, 7),
			want: &Result{
				Name:             "w",
				Docs:             "The w.",
				Parameters:       []Parameter{},
				DeclarationRange: rng(5, 7, 8),
				File:             mainID,
			},
		},
		{
			name: "trailing comment on previous line",
			src:  "#let a = 1 // note\n#let b = 2\n#b",
			at:   pos(3, 2),
			want: &Result{
				Name:             "b",
				Parameters:       []Parameter{},
				DeclarationRange: rng(2, 6, 7),
				File:             mainID,
			},
		},
		{
			name: "own line comment under trailing one",
			src:  "#let a = 1 // note\n// The b.\n#let b = 2\n#b",
			at:   pos(4, 2),
			want: &Result{
				Name:             "b",
				Docs:             "The b.",
				Parameters:       []Parameter{},
				DeclarationRange: rng(3, 6, 7),
				File:             mainID,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setup(map[string]string{"/main.typ": tt.src})
			got, err := r.ResolveAt(mainID, tt.at)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveLibrary(t *testing.T) {
	r := setup(map[string]string{"/main.typ": "#block()[] #calc.pi"})

	got, err := r.ResolveAt(mainID, pos(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("no definition for block")
	}
	if !got.IsStandardLibrary || got.IsCallable || got.DeclarationRange != nil {
		t.Errorf("got %+v", got)
	}
	if !strings.HasPrefix(got.Name, "block(") || got.Kind != "function" || got.Docs == "" {
		t.Errorf("got %+v", got)
	}

	got, err = r.ResolveAt(mainID, pos(1, 18))
	if err != nil {
		t.Fatal(err)
	}
	want := &Result{Name: "pi", Kind: "float", IsStandardLibrary: true, Parameters: []Parameter{}}
	if diff := cmp.Diff(want, got, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Docs"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveAcrossFiles(t *testing.T) {
	r := setup(map[string]string{
		"/main.typ":     "#import \"lib/util.typ\": double\n#double(2)",
		"/lib/util.typ": "// Doubles.\n#let double(n) = n * 2",
	})
	got, err := r.ResolveAt(mainID, pos(2, 3))
	if err != nil {
		t.Fatal(err)
	}
	want := &Result{
		Name:             "double",
		Docs:             "Doubles.",
		IsCallable:       true,
		Parameters:       []Parameter{{Name: "n"}},
		DeclarationRange: rng(2, 6, 12),
		File:             source.ID("/lib/util.typ"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveErrors(t *testing.T) {
	r := setup(map[string]string{"/main.typ": "#let x = 1"})
	for _, tt := range []struct {
		name string
		id   source.FileID
		at   position.Position
	}{
		{"line out of range", mainID, pos(9, 1)},
		{"column out of range", mainID, pos(1, 40)},
		{"unknown file", source.ID("/nope.typ"), pos(1, 1)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveAt(tt.id, tt.at)
			if !errors.Is(err, diag.ErrNotFound) {
				t.Errorf("got %v, want a not-found error", err)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	res := &Result{
		Name:       "add",
		Docs:       "Adds things.",
		IsCallable: true,
		Parameters: []Parameter{{Name: "a", Docs: "First."}, {Name: "b"}},
	}
	want := "```typc\nlet add(a, b)\n```\n\nAdds things.\n\n- `a`: First."
	if got := res.Markdown(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSymbols(t *testing.T) {
	buf := source.NewBuffer(mainID, "#let a = 1\n#let f(x) = {\n  let inner = x\n  inner\n}")
	want := []Symbol{
		{Name: "a", Range: *rng(1, 6, 7), File: mainID},
		{Name: "f", Callable: true, Range: *rng(2, 6, 7), File: mainID},
		{Name: "inner", Range: *rng(3, 7, 12), File: mainID},
	}
	if diff := cmp.Diff(want, Symbols(buf)); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
}
