// Package aplogtest builds capture logs for tests.
package aplogtest

import (
	"bytes"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/pkg/aplog"
)

// C is shorthand for a client-to-server packet.
func C(payload string) aplog.Packet {
	return aplog.Packet{Direction: aplog.ClientToServer, Payload: []byte(payload)}
}

// S is shorthand for a server-to-client packet.
func S(payload string) aplog.Packet {
	return aplog.Packet{Direction: aplog.ServerToClient, Payload: []byte(payload)}
}

// Conn returns a connection between 10.0.0.1:40000 and 10.0.0.2:9000 with
// the given packets.
func Conn(packets ...aplog.Packet) *aplog.Connection {
	return &aplog.Connection{
		Header: aplog.Header{
			Client:     netip.MustParseAddr("10.0.0.1"),
			Server:     netip.MustParseAddr("10.0.0.2"),
			ClientPort: 40000,
			ServerPort: 9000,
			Timestamp:  1470000000,
		},
		Packets: packets,
	}
}

// Encode serializes conns into a complete capture log.
func Encode(t testing.TB, conns ...*aplog.Connection) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := aplog.NewWriter(&buf)
	for _, c := range conns {
		require.NoError(t, w.WriteConnection(c))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// Reader serializes conns and opens an in-memory reader over them.
func Reader(t testing.TB, conns ...*aplog.Connection) *aplog.Reader {
	t.Helper()

	data := Encode(t, conns...)
	r, err := aplog.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r
}

// File writes conns to a log file under t.TempDir and returns its path.
func File(t testing.TB, conns ...*aplog.Connection) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dump.ap")
	require.NoError(t, os.WriteFile(path, Encode(t, conns...), 0o644))
	return path
}

// PayloadOffset returns the absolute offset of byte i of packet p of the
// n-th connection in r.
func PayloadOffset(t testing.TB, r *aplog.Reader, n, p, i int) int64 {
	t.Helper()

	conn, err := r.Connection(n)
	require.NoError(t, err)
	require.Less(t, p, len(conn.Packets))
	return conn.Packets[p].Offset + int64(i)
}
