package plan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/internal/config"
)

func TestSchema(t *testing.T) {
	s := Schema()

	assert.ElementsMatch(t, []string{"log", "service", "port"}, s.Required)
	arch, ok := s.Properties.Get("arch")
	require.True(t, ok)
	assert.Equal(t, []any{"x86_64", "mips"}, arch.Enum)
}

func TestParse(t *testing.T) {
	p, err := Parse([]byte(`{
		"log": "/data/dump.ap",
		"service": "/srv/svc/bin",
		"port": 4100,
		"workers": 8,
		"test_timeout_ms": 5000,
		"arch": "mips"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "/data/dump.ap", p.Log)
	assert.Equal(t, "/srv/svc/bin", p.Service)
	assert.Equal(t, 4100, p.Port)
	assert.Equal(t, 8, p.Workers)
	assert.Equal(t, "mips", p.Arch)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not json", `{"log":`, ""},
		{"missing required", `{"log": "a.ap"}`, "missing properties"},
		{"port out of range", `{"log": "a.ap", "service": "svc", "port": 70000}`, "/port"},
		{"bad arch", `{"log": "a.ap", "service": "svc", "port": 1, "arch": "arm"}`, "/arch"},
		{"unknown field", `{"log": "a.ap", "service": "svc", "port": 1, "threads": 4}`, "threads"},
		{"wrong type", `{"log": "a.ap", "service": "svc", "port": "4000"}`, "/port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log":"x.ap","service":"svc","port":4000}`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x.ap", p.Log)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	cfg := &config.Config{
		TriageWorkers:     100,
		TriagePort:        4000,
		TriageMarker:      "FARKFARKFARK",
		TriageTestTimeout: time.Minute,
		TriageArch:        "x86_64",
	}

	p := &Plan{Port: 4100, Workers: 4, ReadTimeoutMs: 750, Arch: "mips", MipsRoot: "/rootfs"}
	p.Apply(cfg)

	assert.Equal(t, 4100, cfg.TriagePort)
	assert.Equal(t, 4, cfg.TriageWorkers)
	assert.Equal(t, 750*time.Millisecond, cfg.TriageReadTimeout)
	assert.Equal(t, time.Minute, cfg.TriageTestTimeout)
	assert.Equal(t, "FARKFARKFARK", cfg.TriageMarker)
	assert.Equal(t, "mips", cfg.TriageArch)
	assert.Equal(t, "/rootfs", cfg.TriageMipsRoot)
}
