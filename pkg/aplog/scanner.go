package aplog

import (
	"bufio"
	"fmt"
	"io"
)

// PacketScanner reads the packets of one record in order. The position of
// the scanner is always known, so every packet carries its absolute offset.
//
//	sc := r.Packets(h)
//	for sc.Next() {
//	    p := sc.Packet()
//	    ...
//	}
//	if err := sc.Err(); err != nil {
//	    ...
//	}
type PacketScanner struct {
	br    *bufio.Reader
	index int
	pos   int64
	end   int64
	left  uint32

	pkt Packet
	err error
}

func newPacketScanner(r io.Reader, h *Header, start int64) *PacketScanner {
	return &PacketScanner{
		br:    bufio.NewReader(r),
		index: h.Index,
		pos:   start,
		end:   h.End,
		left:  h.PacketCount,
	}
}

// Next advances to the next packet. It returns false when the record is
// exhausted or an error occurred.
func (s *PacketScanner) Next() bool {
	if s.err != nil || s.left == 0 {
		return false
	}

	var hdr [packetHeaderSize]byte
	if _, err := io.ReadFull(s.br, hdr[:]); err != nil {
		s.err = s.truncated("packet header", err)
		return false
	}
	n := int64(byteOrder.Uint32(hdr[1:]))
	payloadAt := s.pos + packetHeaderSize
	if payloadAt+n > s.end {
		s.err = fmt.Errorf("%w: connection %d packet of %d bytes at %d overruns record end %d",
			ErrCorrupt, s.index, n, payloadAt, s.end)
		return false
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(s.br, payload); err != nil {
		s.err = s.truncated("payload", err)
		return false
	}

	s.pkt = Packet{
		Direction: directionFromTag(hdr[0]),
		Offset:    payloadAt,
		Payload:   payload,
	}
	s.pos = payloadAt + n
	s.left--
	return true
}

// Packet returns the packet read by the last successful Next.
func (s *PacketScanner) Packet() Packet {
	return s.pkt
}

// Pos returns the absolute offset just past the last packet read.
func (s *PacketScanner) Pos() int64 {
	return s.pos
}

// Err returns the first error hit while scanning.
func (s *PacketScanner) Err() error {
	return s.err
}

func (s *PacketScanner) truncated(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: connection %d truncated reading %s at %d", ErrCorrupt, s.index, what, s.pos)
	}
	return fmt.Errorf("%w: connection %d: %v", ErrIO, s.index, err)
}
