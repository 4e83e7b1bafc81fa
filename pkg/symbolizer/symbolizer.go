// Package symbolizer ties the symbolication core together: it ingests
// symbol and inline-site records from the external debug-info reader,
// expands sampled addresses into logical frame chains in parallel and
// merges the resolved stacks into the session call tree.
package symbolizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/symtrace/symtrace/pkg/calltree"
	"github.com/symtrace/symtrace/pkg/inline"
	"github.com/symtrace/symtrace/pkg/overload"
	"github.com/symtrace/symtrace/pkg/symtab"
	"github.com/symtrace/symtrace/pkg/typenorm"
)

// TypeRef pairs a raw descriptor with the identity token the reader
// assigned to it. The token keys the normalization cache.
type TypeRef struct {
	ID  uint64
	Raw typenorm.RawType
}

// SymbolRecord is one entry of the reader's (descriptor, symbol)
// stream.
type SymbolRecord struct {
	Module  string
	Name    string
	Mangled string
	Params  []TypeRef
	Return  TypeRef
	Quals   symtab.MethodQualifiers
	Ranges  []symtab.AddrRange
}

// StackSample is one captured stack: raw addresses oldest (innermost)
// first, plus the sample weight to attribute.
type StackSample struct {
	Addrs  []uint64
	Weight int64
}

// Session is one reporting session. Ingestion happens first, then any
// number of resolution rounds; the call tree grows monotonically until
// the session is dropped.
type Session struct {
	id      ulid.ULID
	logger  log.Logger
	cfg     Config
	metrics *metrics

	cache   *typenorm.Cache
	table   *symtab.Table
	inlines *inline.Table
	res     *inline.Resolver
	tree    *calltree.Tree
	origins *originTable

	mu      sync.Mutex
	symbols []*symtab.Symbol
	index   *overload.Index
}

// NewSession creates a session with the given config, logger and
// metrics registerer. Both logger and reg may be nil.
func NewSession(cfg Config, logger log.Logger, reg prometheus.Registerer) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Session{
		id:      ulid.Make(),
		logger:  logger,
		cfg:     cfg,
		metrics: newMetrics(reg),
		cache:   typenorm.NewCache(cfg.CacheSize),
		table:   symtab.NewTable(),
		inlines: inline.NewTable(),
		tree:    calltree.New(),
		origins: newOriginTable(),
	}
	s.res = inline.NewResolver(s.inlines, cfg.MaxInlineDepth)
	level.Debug(logger).Log("msg", "session started", "session", s.id.String())
	return s, nil
}

// ID returns the session ULID.
func (s *Session) ID() ulid.ULID { return s.id }

// AddSymbol normalizes the record's descriptors through the session
// cache and registers the resulting symbol. Normalization never fails;
// the only invalid record is one carrying no name at all.
func (s *Session) AddSymbol(rec SymbolRecord) (*symtab.Symbol, error) {
	if rec.Name == "" && rec.Mangled == "" {
		return nil, errors.New("symbol record without a name")
	}

	params := make([]*typenorm.Type, len(rec.Params))
	for i, p := range rec.Params {
		params[i] = s.normalize(rec.Module, p)
	}
	sym := &symtab.Symbol{
		Sig: symtab.FunctionSignature{
			Name:   rec.Name,
			Params: params,
			Return: s.normalize(rec.Module, rec.Return),
			Quals:  rec.Quals,
		},
		Module:  rec.Module,
		Mangled: rec.Mangled,
		Ranges:  rec.Ranges,
	}
	s.table.Add(sym)

	s.mu.Lock()
	s.symbols = append(s.symbols, sym)
	s.index = nil
	s.mu.Unlock()
	return sym, nil
}

// AddSymbols ingests a batch. A bad record degrades that one symbol
// and never aborts the batch; all failures come back accumulated.
func (s *Session) AddSymbols(recs []SymbolRecord) ([]*symtab.Symbol, error) {
	var errs *multierror.Error
	out := make([]*symtab.Symbol, 0, len(recs))
	for i, rec := range recs {
		sym, err := s.AddSymbol(rec)
		if err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "record %d", i))
			continue
		}
		out = append(out, sym)
	}
	return out, errs.ErrorOrNil()
}

func (s *Session) normalize(module string, ref TypeRef) *typenorm.Type {
	if ref.Raw == nil {
		return nil
	}
	t := s.cache.Normalize(module, ref.ID, ref.Raw)
	if hasOpaque(t) {
		s.metrics.opaqueTypes.Inc()
	}
	return t
}

func hasOpaque(t *typenorm.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind == typenorm.KindOpaque {
		return true
	}
	for _, a := range t.Args {
		if hasOpaque(a) {
			return true
		}
	}
	return hasOpaque(t.Elem)
}

// AddInline registers one inline-site record and interns the inlined
// function's display name.
func (s *Session) AddInline(parent, callee *symtab.Symbol, rng symtab.AddrRange, callLine uint32) {
	if parent == nil || callee == nil {
		return
	}
	s.origins.intern(callee.Name())
	s.inlines.Add(&inline.Site{
		Parent:   parent,
		Range:    rng,
		Callee:   callee,
		CallLine: callLine,
	})
}

// InlineOrigins returns the interned inlined-function names in stable
// index order.
func (s *Session) InlineOrigins() []string { return s.origins.list() }

// MergeInlineOrigins appends another session's origin list, returning
// the index remapping.
func (s *Session) MergeInlineOrigins(other []string) []uint32 { return s.origins.merge(other) }

// Freeze sorts the symbol table and builds the overload index. Call it
// once ingestion is done, before resolution rounds start.
func (s *Session) Freeze() {
	s.table.Freeze()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = overload.NewIndex(s.symbols)
}

func (s *Session) overloadIndex() *overload.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		s.index = overload.NewIndex(s.symbols)
	}
	return s.index
}

// ResolveOverload disambiguates name against an observed canonical
// parameter list.
func (s *Session) ResolveOverload(name string, observed []*typenorm.Type) (*symtab.Symbol, error) {
	sym, err := s.overloadIndex().Resolve(name, observed)
	if errors.Is(err, overload.ErrAmbiguous) {
		s.metrics.ambiguousOverloads.Inc()
		level.Warn(s.logger).Log("msg", "ambiguous overload", "name", name)
	}
	return sym, err
}

// Symbolize expands one raw address into its logical frames, innermost
// first. An uncovered address yields a single synthetic fallback frame
// and a metadata cycle yields the truncated partial chain; both degrade
// one frame, never the round.
func (s *Session) Symbolize(addr uint64) []symtab.Frame {
	sym, ok := s.table.Lookup(addr)
	if !ok {
		s.metrics.unresolvedAddresses.Inc()
		level.Debug(s.logger).Log("msg", "address not covered", "addr", fmt.Sprintf("%#x", addr))
		return []symtab.Frame{{Sym: symtab.Unknown("", addr)}}
	}
	frames, _, err := s.res.Resolve(symtab.SampledAddress{Addr: addr, Sym: sym})
	if err != nil {
		if errors.Is(err, inline.ErrCycle) {
			s.metrics.inlineCycles.Inc()
		}
		level.Warn(s.logger).Log("msg", "inline chain truncated", "addr", fmt.Sprintf("%#x", addr), "err", err)
	}
	s.metrics.chainDepth.Observe(float64(len(frames)))
	return frames
}

// ResolveStack expands a captured stack, addresses oldest (innermost)
// first, into the full logical frame sequence.
func (s *Session) ResolveStack(addrs []uint64) []symtab.Frame {
	frames := make([]symtab.Frame, 0, len(addrs))
	for _, addr := range addrs {
		frames = append(frames, s.Symbolize(addr)...)
	}
	return frames
}

type resolvedStack struct {
	frames []symtab.Frame
	weight int64
}

// MergeStacks resolves the samples in parallel and merges the results
// into the session tree. Resolution fans out over an errgroup; a
// single merger goroutine drains the results so tree mutation stays
// serialized.
func (s *Session) MergeStacks(ctx context.Context, samples []StackSample) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "symbolizer.MergeStacks")
	defer span.Finish()
	span.SetTag("samples", len(samples))

	out := make(chan resolvedStack, s.cfg.MaxConcurrent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range out {
			s.tree.Merge(r.frames, r.weight)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)
	for _, smp := range samples {
		smp := smp
		g.Go(func() error {
			frames := s.ResolveStack(smp.Addrs)
			select {
			case out <- resolvedStack{frames: frames, weight: smp.Weight}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	err := g.Wait()
	close(out)
	<-done
	return err
}

// Tree returns the session call tree.
func (s *Session) Tree() *calltree.Tree { return s.tree }

// Snapshot returns the read-only view of the aggregated call tree.
func (s *Session) Snapshot() *calltree.Node { return s.tree.Snapshot() }
