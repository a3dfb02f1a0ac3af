// Package catalog summarizes every connection of a capture log and serves
// filtered listings and per-endpoint aggregates from memory.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/types"
)

// DefaultWorkers bounds concurrent connection scans during Build.
const DefaultWorkers = 8

// Catalog holds a summary per connection plus bitmap indexes over them.
// It is immutable once built and safe for concurrent use.
type Catalog struct {
	size      int64
	span      int64
	summaries []types.ConnectionSummary

	all          *roaring.Bitmap
	byServer     map[string]*roaring.Bitmap
	byServerIP   map[string]*roaring.Bitmap
	byServerPort map[int]*roaring.Bitmap
	byClientIP   map[string]*roaring.Bitmap
}

// Build scans every connection of r. Connections are summarized by up to
// workers goroutines sharing the reader.
func Build(ctx context.Context, r *aplog.Reader, workers int) (*Catalog, error) {
	start := time.Now()
	if workers <= 0 {
		workers = DefaultWorkers
	}

	summaries := make([]types.ConnectionSummary, r.Count())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range summaries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := Summarize(r, i)
			if err != nil {
				return err
			}
			summaries[i] = *s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Catalog{
		size:         r.Size(),
		span:         r.Span(),
		summaries:    summaries,
		all:          roaring.New(),
		byServer:     make(map[string]*roaring.Bitmap),
		byServerIP:   make(map[string]*roaring.Bitmap),
		byServerPort: make(map[int]*roaring.Bitmap),
		byClientIP:   make(map[string]*roaring.Bitmap),
	}
	for i := range summaries {
		s := &summaries[i]
		id := uint32(i)
		c.all.Add(id)
		addTo(c.byServer, s.Server, id)
		addTo(c.byServerIP, s.ServerIP, id)
		addTo(c.byServerPort, s.ServerPort, id)
		addTo(c.byClientIP, s.ClientIP, id)
	}

	slog.Info("catalog built",
		slog.Int("connections", len(summaries)),
		slog.Int("endpoints", len(c.byServer)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return c, nil
}

func addTo[K comparable](m map[K]*roaring.Bitmap, key K, id uint32) {
	bm, ok := m[key]
	if !ok {
		bm = roaring.New()
		m[key] = bm
	}
	bm.Add(id)
}

// Summarize reads connection i of r and counts its traffic.
func Summarize(r *aplog.Reader, i int) (*types.ConnectionSummary, error) {
	h, err := r.Header(i)
	if err != nil {
		return nil, fmt.Errorf("reading connection %d: %w", i, err)
	}
	s := summaryOf(h)

	sc := r.Packets(h)
	for sc.Next() {
		p := sc.Packet()
		s.Packets++
		if p.Direction == aplog.ClientToServer {
			s.ClientPackets++
			s.ClientBytes += int64(len(p.Payload))
		} else {
			s.ServerPackets++
			s.ServerBytes += int64(len(p.Payload))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning connection %d: %w", i, err)
	}
	return s, nil
}

func summaryOf(h *aplog.Header) *types.ConnectionSummary {
	client, server := h.Endpoints(aplog.ClientToServer)
	return &types.ConnectionSummary{
		Index:        h.Index,
		Start:        h.Start,
		End:          h.End,
		PacketsStart: h.PacketsStart,
		Client:       client.String(),
		Server:       server.String(),
		ClientIP:     h.Client.String(),
		ServerIP:     h.Server.String(),
		ClientPort:   int(h.ClientPort),
		ServerPort:   int(h.ServerPort),
		Timestamp:    int64(h.Timestamp),
		Time:         h.Time().UTC().Format(time.RFC3339),
		Frames:       len(h.FrameIDs),
	}
}

// Len returns the number of connections.
func (c *Catalog) Len() int { return len(c.summaries) }

// Connection returns the summary of connection i.
func (c *Catalog) Connection(i int) (types.ConnectionSummary, bool) {
	if i < 0 || i >= len(c.summaries) {
		return types.ConnectionSummary{}, false
	}
	return c.summaries[i], true
}

// Summaries returns every summary in log order. The slice must not be
// modified.
func (c *Catalog) Summaries() []types.ConnectionSummary { return c.summaries }
