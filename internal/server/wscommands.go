package server

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/wolframe-project/wolframe-typstcore/internal/definition"
)

const maxSymbols = 128

// workspaceSymbol searches the top-level and nested let bindings of every
// workspace file, tolerating a few typos in longer queries.
func (s *Server) workspaceSymbol(
	context *glsp.Context,
	params *protocol.WorkspaceSymbolParams,
) ([]protocol.SymbolInformation, error) {
	var all []definition.Symbol
	for _, id := range s.core.Store().IDs() {
		if id.InPackage() || id.Ext() != "typ" {
			continue
		}
		buf, ok := s.core.Store().Get(id)
		if !ok {
			continue
		}
		all = append(all, definition.Symbols(buf)...)
	}

	var hits []int
	if params.Query == "" {
		for i := range all {
			if i == maxSymbols {
				break
			}
			hits = append(hits, i)
		}
	} else {
		names := make([]string, len(all))
		for i, sym := range all {
			names[i] = sym.Name
		}
		k := min(utf8.RuneCountInString(params.Query)/4, 2)
		hits = filterByBitapFuzzyParallel(params.Query, names, k, maxSymbols)
	}

	symbols := make([]protocol.SymbolInformation, 0, len(hits))
	for _, i := range hits {
		sym := all[i]
		uri, ok := s.IDtoURI(sym.File)
		if !ok {
			continue
		}
		kind := protocol.SymbolKindVariable
		if sym.Callable {
			kind = protocol.SymbolKindFunction
		}
		symbols = append(symbols, protocol.SymbolInformation{
			Name:     sym.Name,
			Kind:     kind,
			Location: protocol.Location{URI: uri, Range: toLSPRange(sym.Range)},
		})
	}
	return symbols, nil
}

// filterByBitapFuzzyParallel returns the indices of the names matching
// pattern with at most k errors, in ascending order.
func filterByBitapFuzzyParallel(pattern string, names []string, k, maxHits int) []int {
	patternRunes := []rune(pattern)
	m := len(patternRunes)
	if m == 0 {
		return nil
	}
	if m > 63 {
		patternRunes = patternRunes[:63]
		m = 63
	}

	var masks [128]uint64
	for i, r := range patternRunes {
		if r < 128 {
			masks[r] |= 1 << uint(i)
		}
	}

	highest := uint64(1) << uint(m-1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan int, maxHits)
	var hitCount int32

	sem := make(chan struct{}, runtime.GOMAXPROCS(0))

	for i, name := range names {
		if atomic.LoadInt32(&hitCount) >= int32(maxHits) || ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			if bitapFuzzyMatch(text, masks, highest, k) {
				count := atomic.AddInt32(&hitCount, 1)
				if count <= int32(maxHits) {
					results <- i
					if count == int32(maxHits) {
						cancel()
					}
				}
			}
		}(i, name)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var filtered []int
	for i := range results {
		filtered = append(filtered, i)
	}
	sort.Ints(filtered)
	return filtered
}

// bitapFuzzyMatch reports whether the pattern encoded in masks occurs in
// text with at most k errors.
func bitapFuzzyMatch(text string, masks [128]uint64, highest uint64, k int) bool {
	r := make([]uint64, k+1)
	for d := range r {
		r[d] = (1 << uint(d)) - 1
	}

	for _, cr := range text {
		var charMask uint64
		if cr < 128 {
			charMask = masks[cr]
		}

		prev := r[0]
		r[0] = ((r[0] << 1) | 1) & charMask

		for d := 1; d <= k; d++ {
			old := r[d]
			match := ((old << 1) | 1) & charMask
			substitution := (prev << 1) | 1
			insertion := prev
			deletion := (r[d-1] << 1) | 1
			r[d] = match | substitution | insertion | deletion
			prev = old
		}

		for d := 0; d <= k; d++ {
			if r[d]&highest != 0 {
				return true
			}
		}
	}
	return false
}
