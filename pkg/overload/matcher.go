// Package overload selects, among candidate symbols sharing a name,
// the one whose canonical parameter list matches an observed one.
package overload

import (
	"github.com/pkg/errors"

	"github.com/symtrace/symtrace/pkg/symtab"
	"github.com/symtrace/symtrace/pkg/typenorm"
)

var (
	// ErrAmbiguous is returned when two or more candidates tie
	// structurally. Identical parameter lists on distinct symbols are
	// invalid input from the debug-info layer; the conflict is
	// surfaced to the caller instead of being tie-broken silently.
	ErrAmbiguous = errors.New("ambiguous overload")

	// ErrNotFound is returned when no candidate matches. Callers
	// degrade to reporting the raw mangled name.
	ErrNotFound = errors.New("no matching overload")
)

// Resolve picks the candidate whose parameters are element-wise
// structurally equal to observed. Candidates not sharing name are
// skipped. The result is a pure function of its inputs.
func Resolve(name string, candidates []*symtab.Symbol, observed []*typenorm.Type) (*symtab.Symbol, error) {
	var match *symtab.Symbol
	for _, c := range candidates {
		if c == nil || c.Sig.Name != name {
			continue
		}
		if !c.Sig.ParamsEqual(observed) {
			continue
		}
		if match != nil {
			// Static, instance and differently-access-qualified
			// members with the same parameters are distinct legal
			// candidates, but matching more than one means the
			// debug info carries a real conflict.
			return nil, errors.Wrap(ErrAmbiguous, name)
		}
		match = c
	}
	if match == nil {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return match, nil
}

// Index is the immutable, pre-resolved mapping from function name to
// its overload set, computed once per module load.
type Index struct {
	byName map[string][]*symtab.Symbol
}

// NewIndex builds the overload index for a set of symbols.
func NewIndex(symbols []*symtab.Symbol) *Index {
	idx := &Index{byName: make(map[string][]*symtab.Symbol, len(symbols))}
	for _, s := range symbols {
		if s == nil || s.Sig.Name == "" {
			continue
		}
		idx.byName[s.Sig.Name] = append(idx.byName[s.Sig.Name], s)
	}
	return idx
}

// Candidates returns the overload set registered under name.
func (i *Index) Candidates(name string) []*symtab.Symbol {
	return i.byName[name]
}

// Resolve disambiguates name against the observed parameter list.
func (i *Index) Resolve(name string, observed []*typenorm.Type) (*symtab.Symbol, error) {
	return Resolve(name, i.byName[name], observed)
}
