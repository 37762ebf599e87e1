package handle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

type failingCloser struct {
	err error
}

func (c *failingCloser) Close() error {
	return c.err
}

func TestArena_Basic(t *testing.T) {
	arena := NewArena[string]("owners")

	h, err := arena.Insert("test")
	require.NoError(t, err)
	require.True(t, h.Valid())

	val, ok := arena.Get(h)
	require.True(t, ok)
	assert.Equal(t, "test", val)

	val, ok = arena.Remove(h)
	assert.True(t, ok)
	assert.Equal(t, "test", val)
	assert.Zero(t, arena.Len())

	_, ok = arena.Remove(h)
	assert.False(t, ok, "second Remove")
}

func TestArena_GenerationCheck(t *testing.T) {
	arena := NewArena[string]("owners")

	first, _ := arena.Insert("first")
	arena.Remove(first)

	second, _ := arena.Insert("second")
	assert.NotEqual(t, first, second, "reused slot mints a different handle")

	_, ok := arena.Get(first)
	assert.False(t, ok, "stale handle resolves to the reused slot")
	v, ok := arena.Get(second)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestArena_InvalidHandles(t *testing.T) {
	arena := NewArena[int]("owners")

	_, ok := arena.Get(Invalid)
	assert.False(t, ok)
	_, ok = arena.Get(Handle(1<<32 | 99))
	assert.False(t, ok, "out of range")
	_, ok = arena.Remove(Handle(1 << 32))
	assert.False(t, ok, "zero index bits")
}

func TestArena_Observer(t *testing.T) {
	arena := NewArena[string]("owners")
	rec := &Recorder{}
	arena.Subscribe(rec)

	h, _ := arena.Insert("test")
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventBound, events[0].Type)
	assert.Equal(t, h, events[0].Handle)
	assert.Equal(t, "owners", events[0].Component)

	arena.Remove(h)
	assert.Equal(t, 1, rec.Count(EventReleased))

	arena.Unsubscribe(rec)
	arena.Insert("test2")
	assert.Len(t, rec.Events(), 2, "no events after Unsubscribe")
}

func TestArena_Each(t *testing.T) {
	arena := NewArena[int]("owners")
	a, _ := arena.Insert(1)
	b, _ := arena.Insert(2)
	c, _ := arena.Insert(3)
	arena.Remove(b)

	seen := map[Handle]int{}
	arena.Each(func(h Handle, v int) bool {
		seen[h] = v
		return true
	})
	assert.Equal(t, map[Handle]int{a: 1, c: 3}, seen)
}

func TestArena_EachMayMutate(t *testing.T) {
	arena := NewArena[int]("owners")
	for i := 0; i < 4; i++ {
		arena.Insert(i)
	}

	done := make(chan struct{})
	visited := 0
	go func() {
		defer close(done)
		arena.Each(func(h Handle, v int) bool {
			visited++
			arena.Remove(h)
			arena.Insert(v + 10)
			return true
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Each deadlocked when fn mutated the arena")
	}
	assert.Equal(t, 4, visited, "values inserted during Each are not visited")
	assert.Equal(t, 4, arena.Len())
}

func TestArena_DropperInterface(t *testing.T) {
	arena := NewArena[any]("owners")
	d := &dropCounter{}

	h, _ := arena.Insert(d)
	arena.Remove(h)

	assert.Equal(t, 1, d.count)
}

func TestArena_Close(t *testing.T) {
	arena := NewArena[any]("owners")
	d := &dropCounter{}
	boom := errors.New("boom")

	arena.Insert(d)
	arena.Insert(&failingCloser{err: boom})

	assert.ErrorIs(t, arena.Close(), boom)
	assert.Equal(t, 1, d.count, "Close drops live values")

	_, err := arena.Insert("late")
	assert.Error(t, err)
	assert.NoError(t, arena.Close())
}
