package models

import (
	"sort"
	"sync"
)

// SequentialIDGenerator hands out small numeric ids to frame handlers and
// viewers. Released ids are handed out again, lowest first.
type SequentialIDGenerator struct {
	mutex     sync.Mutex
	currentID uint32
	released  []uint32
}

// New returns the lowest released id, or the next unused one when none was
// released.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.released) != 0 {
		id := g.released[0]
		g.released = g.released[1:]
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse releases the given id. Ids that were never handed out or that are
// already released are ignored.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.currentID {
		return
	}

	i := sort.Search(len(g.released), func(i int) bool {
		return g.released[i] >= id
	})
	if i < len(g.released) && g.released[i] == id {
		return
	}

	g.released = append(g.released, 0)
	copy(g.released[i+1:], g.released[i:])
	g.released[i] = id
}

// InUse returns the number of ids currently handed out.
func (g *SequentialIDGenerator) InUse() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return int(g.currentID) - len(g.released)
}
