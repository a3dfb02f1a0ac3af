package render

import (
	"fmt"
	"io"

	"github.com/usestring/aptrace/pkg/aplog"
)

// locateRenderer prints the payload span of the packet holding the target,
// or "-1 -1" when the target sits on header bytes.
type locateRenderer struct {
	w      io.Writer
	target int64
	span   aplog.Span
	found  bool
}

func (l *locateRenderer) Begin(info StreamInfo) error {
	l.target = info.Target
	return nil
}

func (l *locateRenderer) Emit(e Emission) error {
	span := aplog.Span{Start: e.Offset, End: e.Offset + int64(len(e.Payload))}
	if !l.found && span.Contains(l.target) {
		l.span, l.found = span, true
	}
	return nil
}

func (l *locateRenderer) End() error {
	if !l.found {
		_, err := io.WriteString(l.w, "-1 -1\n")
		return err
	}
	_, err := fmt.Fprintf(l.w, "%d %d\n", l.span.Start, l.span.End)
	return err
}

// boundsRenderer prints the packet region of the connection when it holds
// the target and nothing otherwise.
type boundsRenderer struct {
	w      io.Writer
	region aplog.Span
	target int64
}

func (b *boundsRenderer) headerOnly() {}

func (b *boundsRenderer) Begin(info StreamInfo) error {
	b.region = info.Header.PacketRegion()
	b.target = info.Target
	return nil
}

func (b *boundsRenderer) Emit(Emission) error { return nil }

func (b *boundsRenderer) End() error {
	if !b.region.Contains(b.target) {
		return nil
	}
	_, err := fmt.Fprintf(b.w, "%d %d\n", b.region.Start, b.region.End)
	return err
}

// Locate returns the payload span of the packet holding offset. The bool
// is false when offset lands on header bytes.
func Locate(r *aplog.Reader, offset int64) (aplog.Span, bool, error) {
	h, err := headerAt(r, offset)
	if err != nil {
		return aplog.Span{}, false, err
	}
	l := &locateRenderer{w: io.Discard}
	if err := Stream(r, h, offset, l); err != nil {
		return aplog.Span{}, false, err
	}
	return l.span, l.found, nil
}

// Bounds returns the packet region of the connection holding offset. The
// bool is false when offset lands on the record header.
func Bounds(r *aplog.Reader, offset int64) (aplog.Span, bool, error) {
	h, err := headerAt(r, offset)
	if err != nil {
		return aplog.Span{}, false, err
	}
	region := h.PacketRegion()
	if !region.Contains(offset) {
		return aplog.Span{}, false, nil
	}
	return region, true, nil
}
