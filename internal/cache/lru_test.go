package cache

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/aptrace/pkg/aplog"
	"github.com/usestring/aptrace/pkg/aplog/aplogtest"
)

func TestHeaderCache_GetOrLoad(t *testing.T) {
	c, err := NewHeaderCache(2)
	require.NoError(t, err)

	var loads atomic.Int32
	load := func(i int) func() (*aplog.Header, error) {
		return func() (*aplog.Header, error) {
			loads.Add(1)
			return &aplog.Header{Index: i}, nil
		}
	}

	h, err := c.GetOrLoad(0, load(0))
	require.NoError(t, err)
	assert.Equal(t, 0, h.Index)

	h, err = c.GetOrLoad(0, load(0))
	require.NoError(t, err)
	assert.Equal(t, 0, h.Index)
	assert.Equal(t, int32(1), loads.Load())

	_, _ = c.GetOrLoad(1, load(1))
	_, _ = c.GetOrLoad(2, load(2))
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get(0)
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestHeaderCache_ErrorsNotCached(t *testing.T) {
	c, err := NewHeaderCache(4)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.GetOrLoad(3, func() (*aplog.Header, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	h, err := c.GetOrLoad(3, func() (*aplog.Header, error) { return &aplog.Header{Index: 3}, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, h.Index)
}

func TestHeaderCache_ConcurrentLoads(t *testing.T) {
	c, err := NewHeaderCache(8)
	require.NoError(t, err)

	var loads atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := c.GetOrLoad(5, func() (*aplog.Header, error) {
				loads.Add(1)
				return &aplog.Header{Index: 5}, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 5, h.Index)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, loads.Load(), int32(1))
	assert.Equal(t, 1, c.Len())
}

func TestHeaderCache_WithReader(t *testing.T) {
	c, err := NewHeaderCache(16)
	require.NoError(t, err)

	data := aplogtest.Encode(t,
		aplogtest.Conn(aplogtest.C("one")),
		aplogtest.Conn(aplogtest.S("two")),
	)
	r, err := aplog.NewReader(bytes.NewReader(data), int64(len(data)), aplog.WithHeaderCache(c))
	require.NoError(t, err)

	for off := int64(0); off < r.Span(); off++ {
		_, err := r.HeaderAt(off)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
}

func TestOpenLog(t *testing.T) {
	path := aplogtest.File(t,
		aplogtest.Conn(aplogtest.C("HELLO"), aplogtest.S("WORLD!")),
		aplogtest.Conn(aplogtest.C("PING")),
	)

	for _, maxItems := range []int{0, 16} {
		r, err := OpenLog(path, maxItems)
		require.NoError(t, err)
		assert.Equal(t, 2, r.Count())

		h, err := r.HeaderAt(50)
		require.NoError(t, err)
		assert.Equal(t, 1, h.Index)
		require.NoError(t, r.Close())
	}

	_, err := OpenLog(t.TempDir()+"/missing.ap", 16)
	assert.ErrorIs(t, err, aplog.ErrIO)
}
