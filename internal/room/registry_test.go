package room

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	registry := newTestRegistry(t)

	first := registry.GetOrCreate("room")
	second := registry.GetOrCreate("room")

	assert.Same(t, first, second)
	assert.Equal(t, "room", first.Name())
	assert.Equal(t, 1, registry.Len())
}

func TestRoomNamesAreCaseSensitive(t *testing.T) {
	registry := newTestRegistry(t)

	lower := registry.GetOrCreate("room")
	upper := registry.GetOrCreate("Room")

	assert.NotSame(t, lower, upper)
	assert.Equal(t, []string{"Room", "room"}, registry.Names())
}

func TestConcurrentGetOrCreate(t *testing.T) {
	registry := newTestRegistry(t)
	const callers = 64

	var wg sync.WaitGroup
	start := make(chan struct{})
	rooms := make([]*Room, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rooms[i] = registry.GetOrCreate("contended")
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, registry.Len())
	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
}

func TestEmptyRoomsAreKept(t *testing.T) {
	registry := newTestRegistry(t)
	room := registry.GetOrCreate("transient")
	m := newRecorder("a")

	room.Enter(m)
	room.Leave(m)

	assert.Same(t, room, registry.GetOrCreate("transient"))
	assert.Equal(t, []string{"transient"}, registry.Names())
}
