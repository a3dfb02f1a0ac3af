// Package resolve maps absolute capture log offsets back to packets and
// extracts the bytes around them.
package resolve

import (
	"fmt"

	"github.com/usestring/aptrace/pkg/aplog"
)

// Context window bounds, in bytes.
const (
	LeftContext  = 50
	RightContext = 30
)

// Locate resolves offset to the packet payload holding it. The returned
// range covers at most length bytes and never crosses the end of the
// payload. A nil location with a nil error means offset falls on a header
// or length byte rather than on payload.
func Locate(r *aplog.Reader, offset int64, length int) (*aplog.Location, error) {
	conn, err := r.ConnectionAt(offset)
	if err != nil {
		return nil, err
	}
	i, ok := conn.PacketAt(offset)
	if !ok {
		return nil, nil
	}

	p := conn.Packets[i]
	start := int(offset - p.Offset)
	return &aplog.Location{
		Connection:  conn,
		PacketIndex: i,
		Start:       start,
		End:         min(start+max(length, 0), len(p.Payload)),
	}, nil
}

// Window returns the target bytes [offset, offset+length) with up to
// LeftContext bytes before and RightContext bytes after them.
//
// Context crosses at most one packet boundary on each side: a short prefix
// is topped up from the tail of the previous packet only, and a short
// suffix from the head of the next packet only. The target itself is
// clipped at the end of its packet.
//
// Offsets outside the log fail with aplog.ErrRange. Offsets that land on a
// header byte yield an empty window and no error.
func Window(r *aplog.Reader, offset int64, length int) ([]byte, error) {
	h, err := r.HeaderAt(offset)
	if err != nil {
		return nil, err
	}
	length = max(length, 0)

	var (
		out   []byte
		prev  []byte
		found bool
		need  int // right context still owed by the next packet
	)

	sc := r.Packets(h)
	for sc.Next() {
		p := sc.Packet()

		if found {
			out = append(out, p.Payload[:min(need, len(p.Payload))]...)
			break
		}

		if p.Span().Contains(offset) {
			rel := int(offset - p.Offset)
			end := min(rel+length, len(p.Payload))
			before, target, after := p.Payload[:rel], p.Payload[rel:end], p.Payload[end:]

			if len(before) > LeftContext {
				before = before[len(before)-LeftContext:]
			}
			if short := LeftContext - len(before); short > 0 {
				out = append(out, prev[max(len(prev)-short, 0):]...)
			}
			out = append(out, before...)
			out = append(out, target...)
			out = append(out, after[:min(RightContext, len(after))]...)

			found = true
			need = RightContext - min(RightContext, len(after))
			if need == 0 {
				break
			}
		}
		prev = p.Payload
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning connection %d: %w", h.Index, err)
	}
	return out, nil
}

// Context is Window rendered through Escape, ready for single-line output.
func Context(r *aplog.Reader, offset int64, length int) (string, error) {
	w, err := Window(r, offset, length)
	if err != nil {
		return "", err
	}
	return Escape(w), nil
}
