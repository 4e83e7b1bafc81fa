package symbolizer

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	unresolvedAddresses prometheus.Counter
	inlineCycles        prometheus.Counter
	opaqueTypes         prometheus.Counter
	ambiguousOverloads  prometheus.Counter
	chainDepth          prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		unresolvedAddresses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symtrace_unresolved_addresses_total",
			Help: "Sampled addresses no symbol or inline metadata covers.",
		}),
		inlineCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symtrace_inline_cycles_total",
			Help: "Inline chains truncated at a metadata cycle.",
		}),
		opaqueTypes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symtrace_opaque_types_total",
			Help: "Type descriptors that normalized to an opaque placeholder.",
		}),
		ambiguousOverloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symtrace_ambiguous_overloads_total",
			Help: "Overload resolutions that ended in a structural tie.",
		}),
		chainDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "symtrace_inline_chain_depth",
			Help:    "Logical frames recovered per sampled address.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.unresolvedAddresses,
			m.inlineCycles,
			m.opaqueTypes,
			m.ambiguousOverloads,
			m.chainDepth,
		)
	}
	return m
}
