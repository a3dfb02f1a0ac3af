package aplog_test

import (
	"bytes"
	"encoding/binary"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/aplog/aplogtest"
)

func TestOpen_FooterRoundTrip(t *testing.T) {
	first := aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!"))
	first.FrameIDs = []uint32{3, 4, 7}
	second := aplogtest.Conn(aplogtest.C("ping"))

	path := aplogtest.File(t, first, second)
	r, err := aplog.Open(path)
	require.NoError(t, err)
	defer r.Close()

	st, err := os.Stat(path)
	require.NoError(t, err)

	var sum int64
	for _, n := range r.Lengths() {
		sum += int64(n)
	}
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, st.Size()-r.FooterSize(), sum)
	assert.Equal(t, sum, r.Span())
	assert.Equal(t, int64(4*(2+1)), r.FooterSize())

	// 24 header + 12 frame ids + (5+5) + (5+6)
	assert.Equal(t, uint32(57), r.Lengths()[0])
	// 24 header + (5+4)
	assert.Equal(t, uint32(33), r.Lengths()[1])
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty file", nil},
		{"shorter than count", []byte{1, 0}},
		{"count exceeds file", []byte{9, 0, 0, 0}},
		{"lengths do not add up", func() []byte {
			b := binary.LittleEndian.AppendUint32(nil, 100)
			return binary.LittleEndian.AppendUint32(b, 1)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			_, err := aplog.Open(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, aplog.ErrIO)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := aplog.Open(filepath.Join(dir, "nope.ap"))
		assert.ErrorIs(t, err, aplog.ErrIO)
	})
}

func TestOpen_EmptyLog(t *testing.T) {
	r := aplogtest.Reader(t)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, int64(0), r.Span())

	_, err := r.ConnectionAt(0)
	assert.ErrorIs(t, err, aplog.ErrRange)
}

func TestConnectionAt(t *testing.T) {
	first := aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!"))
	first.FrameIDs = []uint32{11, 12}
	second := aplogtest.Conn(aplogtest.C("a"), aplogtest.C("b"), aplogtest.S("c"))
	second.Client = netip.MustParseAddr("192.168.1.5")
	second.ClientPort = 5555
	second.Timestamp = 1234

	r := aplogtest.Reader(t, first, second)
	span0 := r.ConnectionSpan(0)

	tests := []struct {
		name      string
		offset    int64
		wantIndex int
	}{
		{"first byte", 0, 0},
		{"inside first", 30, 0},
		{"last byte of first", span0.End - 1, 0},
		{"first byte of second", span0.End, 1},
		{"last byte of log", r.Span() - 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := r.ConnectionAt(tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndex, conn.Index)
		})
	}

	conn, err := r.ConnectionAt(r.Span() - 1)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.5"), conn.Client)
	assert.Equal(t, uint16(5555), conn.ClientPort)
	assert.Equal(t, uint32(1234), conn.Timestamp)
	require.Len(t, conn.Packets, 3)
	assert.Equal(t, aplog.ClientToServer, conn.Packets[1].Direction)
	assert.Equal(t, aplog.ServerToClient, conn.Packets[2].Direction)
	assert.Equal(t, []byte("c"), conn.Packets[2].Payload)

	conn, err = r.ConnectionAt(0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{11, 12}, conn.FrameIDs)
	assert.Equal(t, int64(24+8), conn.PacketsStart)
	assert.Equal(t, int64(24+8+5), conn.Packets[0].Offset)
	assert.Equal(t, int64(24+8+5+5+5), conn.Packets[1].Offset)
	assert.Equal(t, span0.End, conn.Packets[1].Span().End)
}

func TestConnectionAt_OutOfRange(t *testing.T) {
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("x")))

	for _, off := range []int64{-1, r.Span(), r.Span() + 100} {
		_, err := r.ConnectionAt(off)
		assert.ErrorIs(t, err, aplog.ErrRange, "offset %d", off)
	}
}

func TestConnectionAt_SkipsZeroLengthRecords(t *testing.T) {
	data := aplogtest.Encode(t, aplogtest.Conn(aplogtest.C("abc")))

	// Rebuild the footer with an empty record in front.
	n := binary.LittleEndian.Uint32(data[len(data)-4:])
	require.Equal(t, uint32(1), n)
	length := binary.LittleEndian.Uint32(data[len(data)-8:])
	body := data[:len(data)-8]
	footer := binary.LittleEndian.AppendUint32(nil, 0)
	footer = binary.LittleEndian.AppendUint32(footer, length)
	footer = binary.LittleEndian.AppendUint32(footer, 2)
	data = append(append([]byte{}, body...), footer...)

	r, err := aplog.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	i, err := r.IndexOf(0)
	require.NoError(t, err)
	assert.Equal(t, 1, i)
}

func TestConnection_CorruptPacket(t *testing.T) {
	data := aplogtest.Encode(t, aplogtest.Conn(aplogtest.C("abcdef")))
	// Inflate the payload length past the record end.
	binary.LittleEndian.PutUint32(data[25:], 1000)

	r, err := aplog.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	_, err = r.Connection(0)
	assert.ErrorIs(t, err, aplog.ErrCorrupt)
}

func TestHeader_FrameCountPastEnd(t *testing.T) {
	data := aplogtest.Encode(t, aplogtest.Conn())
	binary.LittleEndian.PutUint32(data[20:], 50)

	r, err := aplog.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	_, err = r.Header(0)
	assert.ErrorIs(t, err, aplog.ErrCorrupt)
}

func TestPacketScanner_Positions(t *testing.T) {
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")))
	h, err := r.Header(0)
	require.NoError(t, err)

	sc := r.Packets(h)
	var offsets []int64
	for sc.Next() {
		offsets = append(offsets, sc.Packet().Offset)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []int64{29, 39}, offsets)
	assert.Equal(t, h.End, sc.Pos())
	assert.False(t, sc.Next())
}

func TestHeader_Endpoints(t *testing.T) {
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("x")))
	h, err := r.Header(0)
	require.NoError(t, err)

	src, dst := h.Endpoints(aplog.ServerToClient)
	assert.Equal(t, "10.0.0.2:9000", src.String())
	assert.Equal(t, "10.0.0.1:40000", dst.String())
	assert.Equal(t, "sc", aplog.ServerToClient.String())
	assert.Equal(t, "cs", aplog.ClientToServer.String())
}

func TestConnection_PacketAt(t *testing.T) {
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")))
	conn, err := r.Connection(0)
	require.NoError(t, err)

	i, ok := conn.PacketAt(41)
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = conn.PacketAt(35) // length prefix of the second packet
	assert.False(t, ok)
}
