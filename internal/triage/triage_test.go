package triage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/internal/cache"
	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/aplog/aplogtest"
)

// fakeExecutor reads each script and answers with the marker when the
// script replays a payload containing "CRASH".
type fakeExecutor struct {
	mu      sync.Mutex
	scripts [][]byte
	paths   []string
	hosts   []string
	fail    []byte // scripts containing this fail to execute
}

func (f *fakeExecutor) Execute(_ context.Context, script, host string, port int) ([]byte, error) {
	data, err := os.ReadFile(script)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.scripts = append(f.scripts, data)
	f.paths = append(f.paths, script)
	f.hosts = append(f.hosts, host)
	f.mu.Unlock()

	if f.fail != nil && bytes.Contains(data, f.fail) {
		return []byte("partial FARKFARKFARK"), ErrExecution
	}
	if bytes.Contains(data, []byte("CRASH")) {
		return []byte("segfault\nFARKFARKFARK\n"), nil
	}
	return []byte("'OK'\n"), nil
}

func (f *fakeExecutor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scripts)
}

func packetsStart(r *aplog.Reader, i int) int64 {
	h, err := r.Header(i)
	if err != nil {
		panic(err)
	}
	return h.PacketsStart
}

func TestDriver_ScanStepsOverHeaders(t *testing.T) {
	withFrames := aplogtest.Conn(aplogtest.C("abc"), aplogtest.S("de"))
	withFrames.FrameIDs = []uint32{7, 8, 9}
	empty := aplogtest.Conn()
	r := aplogtest.Reader(t,
		aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
		empty,
		withFrames,
	)

	d := NewDriver(r, &fakeExecutor{}, Config{})
	var got []Candidate
	require.NoError(t, d.Scan(context.Background(), func(c Candidate) bool {
		got = append(got, c)
		return true
	}))

	require.Len(t, got, 2)
	assert.Equal(t, Candidate{Offset: 24, Region: aplog.Span{Start: 24, End: 45}}, got[0])

	// The empty connection has no packet region and yields nothing.
	start := packetsStart(r, 2)
	assert.Equal(t, r.ConnectionSpan(2).Start+24+12, start)
	assert.Equal(t, start, got[1].Offset)
	assert.Equal(t, r.ConnectionSpan(2).End, got[1].Region.End)
}

// countingCache counts lookups and the header parses behind them.
type countingCache struct {
	inner *cache.HeaderCache
	calls atomic.Int64
	loads atomic.Int64
}

func (c *countingCache) GetOrLoad(index int, load func() (*aplog.Header, error)) (*aplog.Header, error) {
	c.calls.Add(1)
	return c.inner.GetOrLoad(index, func() (*aplog.Header, error) {
		c.loads.Add(1)
		return load()
	})
}

func TestDriver_ScanUsesHeaderCache(t *testing.T) {
	tests := []struct {
		name  string
		conns []*aplog.Connection
		want  []int64
	}{
		{
			name:  "one connection",
			conns: []*aplog.Connection{aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!"))},
			want:  []int64{24},
		},
		{
			name: "two connections",
			conns: []*aplog.Connection{
				aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
				aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
			},
			want: []int64{24, 69},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, err := cache.NewHeaderCache(16)
			require.NoError(t, err)
			hc := &countingCache{inner: inner}

			data := aplogtest.Encode(t, tt.conns...)
			r, err := aplog.NewReader(bytes.NewReader(data), int64(len(data)), aplog.WithHeaderCache(hc))
			require.NoError(t, err)

			var got []int64
			d := NewDriver(r, &fakeExecutor{}, Config{})
			require.NoError(t, d.Scan(context.Background(), func(c Candidate) bool {
				got = append(got, c.Offset)
				return true
			}))

			assert.Equal(t, tt.want, got)
			// Every header byte looks its record up; each record is parsed once.
			assert.Equal(t, int64(len(tt.conns)), hc.loads.Load())
			assert.Greater(t, hc.calls.Load(), hc.loads.Load())
		})
	}
}

func TestDriver_ScanStopsEarly(t *testing.T) {
	r := aplogtest.Reader(t,
		aplogtest.Conn(aplogtest.C("a")),
		aplogtest.Conn(aplogtest.C("b")),
	)

	d := NewDriver(r, &fakeExecutor{}, Config{})
	n := 0
	require.NoError(t, d.Scan(context.Background(), func(Candidate) bool {
		n++
		return false
	}))
	assert.Equal(t, 1, n)
}

func TestDriver_RunDeduplicates(t *testing.T) {
	r := aplogtest.Reader(t,
		aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
		aplogtest.Conn(aplogtest.C("other"), aplogtest.S("reply")),
		aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
		aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
	)

	ex := &fakeExecutor{}
	report, err := NewDriver(r, ex, Config{Workers: 4}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, ex.calls())
	assert.Equal(t, 4, report.Candidates)
	assert.Equal(t, 2, report.Tested)
	assert.Equal(t, 2, report.Duplicates)
	assert.Empty(t, report.ConfirmedOffsets)

	// The same script hashes identically wherever it comes from.
	assert.Equal(t, report.Results[0].Hash, report.Results[2].Hash)
	assert.Equal(t, report.Results[0].Hash, report.Results[3].Hash)
	assert.NotEqual(t, report.Results[0].Hash, report.Results[1].Hash)
}

func TestDriver_RunConfirms(t *testing.T) {
	r := aplogtest.Reader(t,
		aplogtest.Conn(aplogtest.C("hello"), aplogtest.S("hi")),
		aplogtest.Conn(aplogtest.C("CRASH ME")),
		aplogtest.Conn(aplogtest.C("bye")),
	)

	ex := &fakeExecutor{}
	report, err := NewDriver(r, ex, Config{Host: "10.1.1.1"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{packetsStart(r, 1)}, report.ConfirmedOffsets)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 3, report.Tested)

	outcomes := make([]Outcome, len(report.Results))
	for i, res := range report.Results {
		outcomes[i] = res.Outcome
	}
	assert.Equal(t, []Outcome{NoEffect, Confirmed, NoEffect}, outcomes)
	assert.Equal(t, []string{"10.1.1.1", "10.1.1.1", "10.1.1.1"}, ex.hosts)
}

func TestDriver_RunCustomMarker(t *testing.T) {
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("CRASH")))

	report, err := NewDriver(r, &fakeExecutor{}, Config{Marker: "SIGSEGV"}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Confirmed)
}

func TestDriver_ExecutionErrorIsNoEffect(t *testing.T) {
	r := aplogtest.Reader(t,
		aplogtest.Conn(aplogtest.C("flaky CRASH")),
		aplogtest.Conn(aplogtest.C("CRASH")),
	)

	ex := &fakeExecutor{fail: []byte("flaky")}
	report, err := NewDriver(r, ex, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, NoEffect, report.Results[0].Outcome)
	assert.ErrorIs(t, report.Results[0].Err, ErrExecution)
	assert.Equal(t, Confirmed, report.Results[1].Outcome)
	assert.Equal(t, 1, report.Errors)
}

func TestDriver_ScriptsAreRemoved(t *testing.T) {
	dir := t.TempDir()
	r := aplogtest.Reader(t,
		aplogtest.Conn(aplogtest.C("one")),
		aplogtest.Conn(aplogtest.C("two")),
	)

	ex := &fakeExecutor{}
	_, err := NewDriver(r, ex, Config{ScriptDir: dir}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, ex.paths, 2)
	for _, p := range ex.paths {
		_, err := os.Stat(p)
		assert.True(t, errors.Is(err, os.ErrNotExist), p)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDriver_ScriptIsReplayDiff(t *testing.T) {
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")))

	ex := &fakeExecutor{}
	_, err := NewDriver(r, ex, Config{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, ex.scripts, 1)
	assert.Contains(t, string(ex.scripts[0]), "send(s, b'HELLO')")
	assert.Contains(t, string(ex.scripts[0]), "timeout=2)")
}

func TestDriver_RunSameReportForAnyPoolSize(t *testing.T) {
	var conns []*aplog.Connection
	for i := 0; i < 30; i++ {
		payload := []string{"a", "b", "c", "CRASH"}[i%4]
		conns = append(conns, aplogtest.Conn(aplogtest.C(payload), aplogtest.S("ack")))
	}
	r := aplogtest.Reader(t, conns...)

	serial, err := NewDriver(r, &fakeExecutor{}, Config{Workers: 1}).Run(context.Background())
	require.NoError(t, err)
	parallel, err := NewDriver(r, &fakeExecutor{}, Config{Workers: 16}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, serial.Candidates)
	assert.Equal(t, 4, serial.Tested)
	assert.Equal(t, serial.Tested, parallel.Tested)
	assert.Equal(t, serial.Confirmed, parallel.Confirmed)
	assert.Equal(t, serial.Candidates, parallel.Candidates)
}

func TestDriver_RunCancelled(t *testing.T) {
	r := aplogtest.Reader(t, aplogtest.Conn(aplogtest.C("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewDriver(r, &fakeExecutor{}, Config{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Candidates)
}

func TestSeenSet(t *testing.T) {
	s := NewSeenSet()
	a := [20]byte{1}
	b := [20]byte{2}

	assert.True(t, s.Add(a))
	assert.False(t, s.Add(a))
	assert.True(t, s.Add(b))
	assert.Equal(t, 2, s.Len())
}

func TestSeenSet_OneWinnerPerHash(t *testing.T) {
	s := NewSeenSet()
	h := [20]byte{9}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add(h) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestReport_Summary(t *testing.T) {
	r := newReport([]Result{
		{Candidate: Candidate{Offset: 9}, Outcome: Confirmed},
		{Candidate: Candidate{Offset: 3}, Outcome: NoEffect, Err: ErrExecution},
		{Candidate: Candidate{Offset: 5}, Outcome: Duplicate},
	}, 0)

	assert.Equal(t, []int64{9}, r.ConfirmedOffsets)
	assert.Equal(t, int64(3), r.Results[0].Offset)
	assert.Equal(t, "3 candidates, 2 tested, 1 duplicates, 1 confirmed, 1 execution errors in 0s", r.Summary())

	big := &Report{Candidates: 12345}
	assert.Contains(t, big.Summary(), "12,345 candidates")
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "no_effect", NoEffect.String())
	assert.Equal(t, "outcome(7)", Outcome(7).String())
}
