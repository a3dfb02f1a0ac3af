package aplog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrIO reports an unreadable log or a footer that does not fit the file.
	ErrIO = errors.New("capture log unreadable")

	// ErrRange reports an offset outside the span covered by the records.
	ErrRange = errors.New("offset out of range")

	// ErrCorrupt reports a record whose contents overflow its footer length.
	ErrCorrupt = errors.New("corrupt connection record")
)

var byteOrder = binary.LittleEndian

const (
	// headerSize is the fixed part of a record header, frame count included.
	headerSize = 24

	// packetHeaderSize is the direction tag plus the payload length.
	packetHeaderSize = 5

	tagClient byte = 'c'
	tagServer byte = 's'
)

// Direction tells which peer sent a packet.
type Direction uint8

const (
	ClientToServer Direction = iota
	ServerToClient
)

// String returns the short form used in rendered artifacts: "cs" or "sc".
func (d Direction) String() string {
	if d == ClientToServer {
		return "cs"
	}
	return "sc"
}

func (d Direction) tag() byte {
	if d == ClientToServer {
		return tagClient
	}
	return tagServer
}

func directionFromTag(b byte) Direction {
	if b == tagClient {
		return ClientToServer
	}
	return ServerToClient
}

// Span is a half-open byte range [Start, End) of absolute file offsets.
type Span struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether off lies inside the span.
func (s Span) Contains(off int64) bool {
	return s.Start <= off && off < s.End
}

// Len returns the number of bytes covered.
func (s Span) Len() int64 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Header is everything in a record except the packets.
type Header struct {
	Index        int
	Start        int64 // absolute offset of the record
	End          int64 // Start plus the footer length of the record
	PacketsStart int64 // absolute offset of the first packet's direction byte

	PacketCount uint32
	Client      netip.Addr
	Server      netip.Addr
	ClientPort  uint16
	ServerPort  uint16
	Timestamp   uint32
	FrameIDs    []uint32
}

// Time returns the record timestamp.
func (h *Header) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0).UTC()
}

// PacketRegion returns the span holding the packet sequence.
func (h *Header) PacketRegion() Span {
	return Span{Start: h.PacketsStart, End: h.End}
}

// Endpoints returns source and destination of a packet travelling in d.
func (h *Header) Endpoints(d Direction) (src netip.AddrPort, dst netip.AddrPort) {
	client := netip.AddrPortFrom(h.Client, h.ClientPort)
	server := netip.AddrPortFrom(h.Server, h.ServerPort)
	if d == ClientToServer {
		return client, server
	}
	return server, client
}

// Packet is one payload chunk of a connection.
type Packet struct {
	Direction Direction
	Offset    int64 // absolute offset of the first payload byte
	Payload   []byte
}

// Span returns the absolute span of the payload.
func (p Packet) Span() Span {
	return Span{Start: p.Offset, End: p.Offset + int64(len(p.Payload))}
}

// Connection is a fully parsed record.
type Connection struct {
	Header
	Packets []Packet
}

// PacketAt returns the index of the packet whose payload holds off.
func (c *Connection) PacketAt(off int64) (int, bool) {
	for i, p := range c.Packets {
		if p.Span().Contains(off) {
			return i, true
		}
	}
	return -1, false
}

// Location resolves an absolute offset to a byte range inside one packet.
type Location struct {
	Connection  *Connection
	PacketIndex int
	Start       int // payload-relative, inclusive
	End         int // payload-relative, exclusive
}

// Packet returns the packet the location points into.
func (l *Location) Packet() Packet {
	return l.Connection.Packets[l.PacketIndex]
}

// Span returns the absolute span of the located bytes.
func (l *Location) Span() Span {
	p := l.Packet()
	return Span{Start: p.Offset + int64(l.Start), End: p.Offset + int64(l.End)}
}
