package aplog

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"
)

// HeaderCache memoizes parsed record headers by connection index.
// Implementations must be safe for concurrent use.
type HeaderCache interface {
	GetOrLoad(index int, load func() (*Header, error)) (*Header, error)
}

// Option configures a Reader.
type Option func(*Reader)

// WithHeaderCache makes the reader consult c before parsing a header.
func WithHeaderCache(c HeaderCache) Option {
	return func(r *Reader) {
		r.headers = c
	}
}

// Reader gives read-only access to a capture log. It is safe for concurrent
// use because every read goes through io.ReaderAt.
type Reader struct {
	ra     io.ReaderAt
	closer io.Closer
	size   int64

	lengths []uint32
	starts  []int64 // starts[i] is the offset of record i, starts[n] the span

	headers HeaderCache
}

// Open opens the capture log at path and parses its footer.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	r, err := NewReader(f, st.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader parses the footer of a capture log of the given size.
func NewReader(ra io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	if size < 4 {
		return nil, fmt.Errorf("%w: %d bytes is too small for a footer", ErrIO, size)
	}

	var buf [4]byte
	if _, err := ra.ReadAt(buf[:], size-4); err != nil {
		return nil, fmt.Errorf("%w: reading connection count: %v", ErrIO, err)
	}
	count := int64(byteOrder.Uint32(buf[:]))

	footer := 4 * (count + 1)
	if footer > size {
		return nil, fmt.Errorf("%w: footer of %d connections exceeds file size %d", ErrIO, count, size)
	}

	raw := make([]byte, 4*count)
	if _, err := ra.ReadAt(raw, size-footer); err != nil {
		return nil, fmt.Errorf("%w: reading connection lengths: %v", ErrIO, err)
	}

	r := &Reader{
		ra:      ra,
		size:    size,
		lengths: make([]uint32, count),
		starts:  make([]int64, count+1),
	}
	for i := range r.lengths {
		r.lengths[i] = byteOrder.Uint32(raw[4*i:])
		r.starts[i+1] = r.starts[i] + int64(r.lengths[i])
	}
	if got := r.starts[count] + footer; got != size {
		return nil, fmt.Errorf("%w: connection lengths plus footer sum to %d, file has %d bytes", ErrIO, got, size)
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Count returns the number of connection records.
func (r *Reader) Count() int {
	return len(r.lengths)
}

// Span returns the number of bytes covered by records, footer excluded.
func (r *Reader) Span() int64 {
	return r.starts[len(r.lengths)]
}

// Size returns the total file size.
func (r *Reader) Size() int64 {
	return r.size
}

// FooterSize returns the size of the trailing index.
func (r *Reader) FooterSize() int64 {
	return r.size - r.Span()
}

// Lengths returns a copy of the per-record lengths in file order.
func (r *Reader) Lengths() []uint32 {
	out := make([]uint32, len(r.lengths))
	copy(out, r.lengths)
	return out
}

// ConnectionSpan returns the absolute span of record i.
func (r *Reader) ConnectionSpan(i int) Span {
	return Span{Start: r.starts[i], End: r.starts[i+1]}
}

// IndexOf returns the index of the record containing offset.
func (r *Reader) IndexOf(offset int64) (int, error) {
	if offset < 0 || offset >= r.Span() {
		return -1, fmt.Errorf("%w: %d not in [0,%d)", ErrRange, offset, r.Span())
	}
	// First record whose running sum exceeds offset.
	i := sort.Search(len(r.lengths), func(i int) bool {
		return r.starts[i+1] > offset
	})
	return i, nil
}

// HeaderAt parses the header of the record containing offset.
func (r *Reader) HeaderAt(offset int64) (*Header, error) {
	i, err := r.IndexOf(offset)
	if err != nil {
		return nil, err
	}
	return r.Header(i)
}

// Header parses the header of record i.
func (r *Reader) Header(i int) (*Header, error) {
	if i < 0 || i >= len(r.lengths) {
		return nil, fmt.Errorf("%w: connection index %d of %d", ErrRange, i, len(r.lengths))
	}
	if r.headers != nil {
		return r.headers.GetOrLoad(i, func() (*Header, error) {
			return r.readHeader(i)
		})
	}
	return r.readHeader(i)
}

func (r *Reader) readHeader(i int) (*Header, error) {
	span := r.ConnectionSpan(i)
	if span.Len() < headerSize {
		return nil, fmt.Errorf("%w: connection %d is %d bytes, shorter than its header", ErrCorrupt, i, span.Len())
	}

	var buf [headerSize]byte
	if _, err := r.ra.ReadAt(buf[:], span.Start); err != nil {
		return nil, fmt.Errorf("%w: reading header of connection %d: %v", ErrIO, i, err)
	}

	h := &Header{
		Index:       i,
		Start:       span.Start,
		End:         span.End,
		PacketCount: byteOrder.Uint32(buf[0:4]),
		Client:      netip.AddrFrom4([4]byte(buf[4:8])),
		Server:      netip.AddrFrom4([4]byte(buf[8:12])),
		ClientPort:  byteOrder.Uint16(buf[12:14]),
		ServerPort:  byteOrder.Uint16(buf[14:16]),
		Timestamp:   byteOrder.Uint32(buf[16:20]),
	}

	frames := int64(byteOrder.Uint32(buf[20:24]))
	h.PacketsStart = span.Start + headerSize + 4*frames
	if h.PacketsStart > span.End {
		return nil, fmt.Errorf("%w: connection %d lists %d frames past its end", ErrCorrupt, i, frames)
	}

	raw := make([]byte, 4*frames)
	if _, err := r.ra.ReadAt(raw, span.Start+headerSize); err != nil {
		return nil, fmt.Errorf("%w: reading frame ids of connection %d: %v", ErrIO, i, err)
	}
	h.FrameIDs = make([]uint32, frames)
	for j := range h.FrameIDs {
		h.FrameIDs[j] = byteOrder.Uint32(raw[4*j:])
	}
	return h, nil
}

// ConnectionAt parses the record containing offset, packets included.
func (r *Reader) ConnectionAt(offset int64) (*Connection, error) {
	i, err := r.IndexOf(offset)
	if err != nil {
		return nil, err
	}
	return r.Connection(i)
}

// Connection parses record i, packets included.
func (r *Reader) Connection(i int) (*Connection, error) {
	h, err := r.Header(i)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		Header:  *h,
		Packets: make([]Packet, 0, min(int(h.PacketCount), 1024)),
	}
	sc := r.Packets(h)
	for sc.Next() {
		conn.Packets = append(conn.Packets, sc.Packet())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return conn, nil
}

// Packets returns a scanner over the packets of the record described by h.
func (r *Reader) Packets(h *Header) *PacketScanner {
	region := h.PacketRegion()
	return newPacketScanner(io.NewSectionReader(r.ra, region.Start, region.Len()), h, region.Start)
}
