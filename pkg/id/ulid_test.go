package id

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	t.Parallel()

	v := NewULID()
	assert.Len(t, v, 26)
	require.Regexp(t, regexp.MustCompile(`^[0-9A-HJ-NP-TV-Z]{26}$`), v)
}

func TestNewULIDAt_Sortable(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	prev := NewULIDAt(base)
	for i := 1; i <= 50; i++ {
		next := NewULIDAt(base.Add(time.Duration(i) * time.Millisecond))
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestNewULIDAt_TimestampPrefix(t *testing.T) {
	t.Parallel()

	ts := time.UnixMilli(1_700_000_000_000)
	a, b := NewULIDAt(ts), NewULIDAt(ts)
	assert.Equal(t, a[:10], b[:10])
	assert.NotEqual(t, a[10:], b[10:])
}

func TestEncode(t *testing.T) {
	t.Parallel()

	var zero [16]byte
	assert.Equal(t, "00000000000000000000000000", encode(zero))

	var ones [16]byte
	for i := range ones {
		ones[i] = 0xFF
	}
	assert.Equal(t, "7ZZZZZZZZZZZZZZZZZZZZZZZZZ", encode(ones))

	var low [16]byte
	low[15] = 0x01
	assert.Equal(t, "00000000000000000000000001", encode(low))
}

func TestNewULID_Concurrent(t *testing.T) {
	t.Parallel()

	const n = 200
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[string]struct{}, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := NewULID()
			mu.Lock()
			seen[v] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
