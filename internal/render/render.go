// Package render turns a capture log connection into an output artifact.
//
// Every variant implements [Renderer]. A render walks one connection: Begin
// receives the header, Emit is called once per packet in wire order and End
// flushes. Output goes to a sink owned by the caller, so a renderer never
// decides where its bytes land.
package render

import (
	"errors"
	"fmt"
	"io"
	"net/netip"

	"github.com/usestring/aptrace/pkg/aplog"
)

// StreamInfo describes the connection being rendered.
type StreamInfo struct {
	Header *aplog.Header
	Target int64 // absolute offset the render was requested for
}

// Emission is one packet handed to a renderer.
type Emission struct {
	Src       netip.AddrPort
	Dst       netip.AddrPort
	Direction aplog.Direction
	Payload   []byte
	Offset    int64 // absolute offset of the first payload byte
}

// Renderer is the capability set every format implements.
type Renderer interface {
	Begin(info StreamInfo) error
	Emit(e Emission) error
	End() error
}

// headerOnly is implemented by renderers that never look at packets.
type headerOnly interface {
	headerOnly()
}

// New returns the renderer for f writing to sink.
func New(f Format, opts Options, sink io.Writer) (Renderer, error) {
	if err := opts.Validate(f); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	switch f {
	case FormatStr, FormatHex, FormatRepr:
		return newDump(f, opts, sink), nil
	case FormatLocate:
		return &locateRenderer{w: sink}, nil
	case FormatBounds:
		return &boundsRenderer{w: sink}, nil
	case FormatLiteral:
		return newLiteral(opts, sink), nil
	case FormatReplayNaive:
		return newNaiveReplay(sink), nil
	case FormatReplayDiff:
		return newDiffReplay(opts, sink), nil
	case FormatPcap:
		return &pcapRenderer{path: opts.CapturePath, w: sink}, nil
	}
	return nil, fmt.Errorf("%w: no renderer for %s", ErrConfig, f)
}

// Render writes the artifact of format f for the connection holding offset
// to sink. An offset outside every connection fails with ErrNotFound.
func Render(r *aplog.Reader, offset int64, f Format, opts Options, sink io.Writer) error {
	rd, err := New(f, opts, sink)
	if err != nil {
		return err
	}
	h, err := headerAt(r, offset)
	if err != nil {
		return err
	}
	return Stream(r, h, offset, rd)
}

// Stream drives rd over the connection described by h.
func Stream(r *aplog.Reader, h *aplog.Header, target int64, rd Renderer) error {
	if err := rd.Begin(StreamInfo{Header: h, Target: target}); err != nil {
		return fmt.Errorf("begin connection %d: %w", h.Index, err)
	}

	if _, skip := rd.(headerOnly); !skip {
		sc := r.Packets(h)
		for sc.Next() {
			p := sc.Packet()
			src, dst := h.Endpoints(p.Direction)
			err := rd.Emit(Emission{
				Src:       src,
				Dst:       dst,
				Direction: p.Direction,
				Payload:   p.Payload,
				Offset:    p.Offset,
			})
			if err != nil {
				return fmt.Errorf("emit connection %d packet at %d: %w", h.Index, p.Offset, err)
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
	}

	if err := rd.End(); err != nil {
		return fmt.Errorf("end connection %d: %w", h.Index, err)
	}
	return nil
}

func headerAt(r *aplog.Reader, offset int64) (*aplog.Header, error) {
	h, err := r.HeaderAt(offset)
	if errors.Is(err, aplog.ErrRange) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return h, err
}
