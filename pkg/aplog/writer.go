package aplog

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/netip"
)

// Writer produces capture logs. Records are written as they come; Close
// appends the footer.
type Writer struct {
	w       io.Writer
	lengths []uint32
	closed  bool
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteConnection appends one record. The header's PacketCount is derived
// from len(c.Packets); offsets in c are ignored.
func (w *Writer) WriteConnection(c *Connection) error {
	if w.closed {
		return errors.New("aplog: write after close")
	}
	for _, a := range []netip.Addr{c.Client, c.Server} {
		if a.IsValid() && !a.Is4() {
			return fmt.Errorf("aplog: address %s is not IPv4", a)
		}
	}

	size := int64(headerSize + 4*len(c.FrameIDs))
	for _, p := range c.Packets {
		size += packetHeaderSize + int64(len(p.Payload))
	}
	if size > math.MaxUint32 {
		return fmt.Errorf("aplog: connection of %d bytes does not fit a u32 length", size)
	}

	buf := make([]byte, 0, size)
	buf = byteOrder.AppendUint32(buf, uint32(len(c.Packets)))
	buf = append(buf, addr4(c.Client)...)
	buf = append(buf, addr4(c.Server)...)
	buf = byteOrder.AppendUint16(buf, c.ClientPort)
	buf = byteOrder.AppendUint16(buf, c.ServerPort)
	buf = byteOrder.AppendUint32(buf, c.Timestamp)
	buf = byteOrder.AppendUint32(buf, uint32(len(c.FrameIDs)))
	for _, id := range c.FrameIDs {
		buf = byteOrder.AppendUint32(buf, id)
	}
	for _, p := range c.Packets {
		buf = append(buf, p.Direction.tag())
		buf = byteOrder.AppendUint32(buf, uint32(len(p.Payload)))
		buf = append(buf, p.Payload...)
	}

	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	w.lengths = append(w.lengths, uint32(size))
	return nil
}

// Close writes the footer. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	buf := make([]byte, 0, 4*(len(w.lengths)+1))
	for _, n := range w.lengths {
		buf = byteOrder.AppendUint32(buf, n)
	}
	buf = byteOrder.AppendUint32(buf, uint32(len(w.lengths)))
	_, err := w.w.Write(buf)
	return err
}

func addr4(a netip.Addr) []byte {
	if !a.IsValid() {
		return make([]byte, 4)
	}
	b := a.As4()
	return b[:]
}
