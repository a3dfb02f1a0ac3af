package render

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/pkg/aplog/aplogtest"
)

// writeCapture writes n frames whose payload is the frame number repeated.
func writeCapture(t *testing.T, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "full.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i := 1; i <= n; i++ {
		data := bytes.Repeat([]byte{byte(i)}, 20+i)
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1470000000+int64(i), 0),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func readCapture(t *testing.T, data []byte) [][]byte {
	t.Helper()

	r, err := pcapgo.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	var frames [][]byte
	for {
		d, _, err := r.ReadPacketData()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, d)
	}
}

func TestRender_Pcap(t *testing.T) {
	capture := writeCapture(t, 6)

	conn := aplogtest.Conn(aplogtest.C("x"))
	conn.FrameIDs = []uint32{5, 2, 4}
	r := aplogtest.Reader(t, conn)

	var buf bytes.Buffer
	require.NoError(t, Render(r, 0, FormatPcap, Options{CapturePath: capture}, &buf))

	frames := readCapture(t, buf.Bytes())
	require.Len(t, frames, 3)
	assert.Equal(t, bytes.Repeat([]byte{2}, 22), frames[0])
	assert.Equal(t, bytes.Repeat([]byte{4}, 24), frames[1])
	assert.Equal(t, bytes.Repeat([]byte{5}, 25), frames[2])
}

func TestRender_PcapMissingFrames(t *testing.T) {
	capture := writeCapture(t, 3)

	conn := aplogtest.Conn(aplogtest.C("x"))
	conn.FrameIDs = []uint32{2, 9}
	r := aplogtest.Reader(t, conn)

	err := Render(r, 0, FormatPcap, Options{CapturePath: capture}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing 1")
}

func TestRender_PcapNoFrames(t *testing.T) {
	capture := writeCapture(t, 1)
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("x")))

	err := Render(r, 0, FormatPcap, Options{CapturePath: capture}, io.Discard)
	assert.Error(t, err)
}

func TestRender_PcapBadCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(path, []byte("not a capture at all"), 0o644))

	conn := aplogtest.Conn(aplogtest.C("x"))
	conn.FrameIDs = []uint32{1}
	r := aplogtest.Reader(t, conn)

	err := Render(r, 0, FormatPcap, Options{CapturePath: path}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither pcap")
}
