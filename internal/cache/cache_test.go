package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("model:backlog:b1", "value", time.Minute))

	got, ok := m.Get("model:backlog:b1")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = m.Get("model:backlog:b2")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("k", "v", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := m.Get("k")
	assert.False(t, ok, "expired entry should not be returned")
	assert.Equal(t, 0, m.Len(), "expired entry should be evicted on read")
}

func TestZeroTTLNeverExpires(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("k", "v", 0))

	got, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestForget(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("a", 1, time.Minute))
	require.NoError(t, m.Put("b", 2, time.Minute))

	require.NoError(t, m.Forget("a"))

	_, ok := m.Get("a")
	assert.False(t, ok)
	_, ok = m.Get("b")
	assert.True(t, ok)
}

func TestForgetMany(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Put("a", 1, time.Minute))
	require.NoError(t, m.Put("b", 2, time.Minute))
	require.NoError(t, m.Put("c", 3, time.Minute))

	require.NoError(t, m.ForgetMany("a", "c", "missing"))

	assert.Equal(t, 1, m.Len())
	_, ok := m.Get("b")
	assert.True(t, ok)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "model:backlog:b1", ModelKey("backlog", "b1"))
	assert.Equal(t, "model:backlog:all", ModelAllKey("backlog"))
	assert.Equal(t, "backlogs:project:p1", ProjectBacklogsKey("p1"))
}
