package catalog

import (
	"sort"
	"time"

	"github.com/usestring/aptrace/pkg/types"
)

// examplesPerEndpoint caps Endpoint.ExampleOffsets.
const examplesPerEndpoint = 3

// Endpoints aggregates connections by server address, busiest first. A
// limit of 0 returns every endpoint.
func (c *Catalog) Endpoints(limit int) []types.Endpoint {
	out := make([]types.Endpoint, 0, len(c.byServer))
	for server, bm := range c.byServer {
		ep := types.Endpoint{
			Server:         server,
			Connections:    int(bm.GetCardinality()),
			ExampleOffsets: []int64{},
		}
		clients := make(map[string]struct{})
		it := bm.Iterator()
		for it.HasNext() {
			s := &c.summaries[it.Next()]
			clients[s.ClientIP] = struct{}{}
			ep.Traffic.Add(s.Traffic)
			if ep.FirstSeen == 0 || s.Timestamp < ep.FirstSeen {
				ep.FirstSeen = s.Timestamp
			}
			if s.Timestamp > ep.LastSeen {
				ep.LastSeen = s.Timestamp
			}
			if len(ep.ExampleOffsets) < examplesPerEndpoint && s.Packets > 0 {
				ep.ExampleOffsets = append(ep.ExampleOffsets, s.PacketsStart)
			}
		}
		ep.Clients = len(clients)
		out = append(out, ep)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Connections != out[j].Connections {
			return out[i].Connections > out[j].Connections
		}
		return out[i].Server < out[j].Server
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summary describes the whole log with its top endpoints.
func (c *Catalog) Summary(topEndpoints int) *types.LogSummary {
	sum := &types.LogSummary{
		Size:        c.size,
		Span:        c.span,
		Connections: len(c.summaries),
		Endpoints:   c.Endpoints(topEndpoints),
	}

	var first, last int64
	for i := range c.summaries {
		s := &c.summaries[i]
		sum.Traffic.Add(s.Traffic)
		if s.Packets == 0 {
			sum.Empty++
		}
		if i == 0 || s.Timestamp < first {
			first = s.Timestamp
		}
		if s.Timestamp > last {
			last = s.Timestamp
		}
	}
	if len(c.summaries) > 0 {
		sum.FirstSeen = time.Unix(first, 0).UTC().Format(time.RFC3339)
		sum.LastSeen = time.Unix(last, 0).UTC().Format(time.RFC3339)
	}
	return sum
}
