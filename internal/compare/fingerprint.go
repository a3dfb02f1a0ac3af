package compare

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/usestring/aptrace/internal/catalog"
	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/types"
)

// Fingerprint hashes the packet sequence of the connection holding offset.
// Endpoints, timestamps and frame numbers do not contribute, so replays of
// the same conversation share a fingerprint.
func Fingerprint(r *aplog.Reader, offset int64) (*types.Fingerprint, error) {
	conn, err := r.ConnectionAt(offset)
	if err != nil {
		return nil, err
	}
	return fingerprintOf(r, conn)
}

func fingerprintOf(r *aplog.Reader, conn *aplog.Connection) (*types.Fingerprint, error) {
	summary, err := catalog.Summarize(r, conn.Index)
	if err != nil {
		return nil, err
	}

	all, client, server := sha256.New(), sha256.New(), sha256.New()
	shape := make([]string, 0, len(conn.Packets))
	var lenBuf [4]byte
	for _, p := range conn.Packets {
		tag := p.Direction.String()[:1]
		lenBuf = [4]byte{
			byte(len(p.Payload)), byte(len(p.Payload) >> 8),
			byte(len(p.Payload) >> 16), byte(len(p.Payload) >> 24),
		}
		all.Write([]byte(tag))
		all.Write(lenBuf[:])
		all.Write(p.Payload)

		side := server
		if p.Direction == aplog.ClientToServer {
			side = client
		}
		side.Write(lenBuf[:])
		side.Write(p.Payload)

		shape = append(shape, fmt.Sprintf("%s%d", tag, len(p.Payload)))
	}

	return &types.Fingerprint{
		Connection: summary,
		Hash:       hex.EncodeToString(all.Sum(nil)),
		ClientHash: hex.EncodeToString(client.Sum(nil)),
		ServerHash: hex.EncodeToString(server.Sum(nil)),
		Shape:      shape,
	}, nil
}
