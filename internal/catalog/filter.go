package catalog

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/usestring/aptrace/pkg/types"
)

// DefaultListLimit is the page size used when a request sets none.
const DefaultListLimit = 50

// Match returns the indexes of connections matching req, ignoring paging.
func (c *Catalog) Match(req *types.ListRequest) *roaring.Bitmap {
	if req == nil {
		return c.all.Clone()
	}

	result := c.all.Clone()
	intersect := func(m map[string]*roaring.Bitmap, key string) {
		if key == "" {
			return
		}
		if bm, ok := m[key]; ok {
			result.And(bm)
		} else {
			result.Clear()
		}
	}
	intersect(c.byServer, req.Server)
	intersect(c.byServerIP, req.ServerIP)
	intersect(c.byClientIP, req.ClientIP)
	if req.ServerPort != 0 {
		if bm, ok := c.byServerPort[req.ServerPort]; ok {
			result.And(bm)
		} else {
			result.Clear()
		}
	}

	if req.Since == 0 && req.Until == 0 && req.MinPackets == 0 {
		return result
	}
	filtered := roaring.New()
	it := result.Iterator()
	for it.HasNext() {
		id := it.Next()
		s := &c.summaries[id]
		if req.Since != 0 && s.Timestamp < req.Since {
			continue
		}
		if req.Until != 0 && s.Timestamp > req.Until {
			continue
		}
		if s.Packets < req.MinPackets {
			continue
		}
		filtered.Add(id)
	}
	return filtered
}

// List returns one page of connections matching req, in log order.
func (c *Catalog) List(req *types.ListRequest) *types.ListResponse {
	return Page(c.Matching(req), req)
}

// Matching returns every connection matching req, in log order.
func (c *Catalog) Matching(req *types.ListRequest) []types.ConnectionSummary {
	matched := c.Match(req)
	out := make([]types.ConnectionSummary, 0, matched.GetCardinality())
	it := matched.Iterator()
	for it.HasNext() {
		out = append(out, c.summaries[it.Next()])
	}
	return out
}

// Page cuts the page selected by req's Limit and Offset out of summaries.
func Page(summaries []types.ConnectionSummary, req *types.ListRequest) *types.ListResponse {
	limit, offset := DefaultListLimit, 0
	if req != nil {
		if req.Limit > 0 {
			limit = req.Limit
		}
		if req.Offset > 0 {
			offset = req.Offset
		}
	}

	resp := &types.ListResponse{
		Connections: []types.ConnectionSummary{},
		Total:       len(summaries),
	}
	if offset >= len(summaries) {
		return resp
	}
	end := min(offset+limit, len(summaries))
	resp.Connections = append(resp.Connections, summaries[offset:end]...)
	resp.HasMore = end < len(summaries)
	return resp
}
