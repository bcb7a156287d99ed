package spatial

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Quadtree Spatial Partition
//
// A recursive 4-ary partition implementing the spatial_partition interface.
// The particularities are:
//   - a node buffers up to capacity items, the next insertion splits it into
//     four quadrants and the buffered items are offered again to all of them.
//   - containment is strict: an item lying exactly on a split seam, or outside
//     the root rect, is not retained by any node.
//   - the tree only holds references, it is meant to be rebuilt from the live
//     items every tick and thrown away afterwards.

// ErrTypeIndexExhausted is the error type returned when a node must split but
// its area cannot be subdivided anymore.
const ErrTypeIndexExhausted = "index-exhausted"

// MinSplitExtent is the width and height at or under which a node with the
// area limit enabled refuses to split.
const MinSplitExtent = 1.0

var _ SpatialPartition[HasPosition] = (*Quadtree[HasPosition])(nil)

type Quadtree[T HasPosition] struct {
	rect      Rect
	capacity  int
	limitArea bool
	divided   bool

	// valid only when divided:
	ne *Quadtree[T]
	nw *Quadtree[T]
	se *Quadtree[T]
	sw *Quadtree[T]

	// valid only when not divided:
	data []T
}

func NewQuadtree[T HasPosition](rect Rect, capacity int, limitArea bool) *Quadtree[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return &Quadtree[T]{
		rect:      rect,
		capacity:  capacity,
		limitArea: limitArea,
	}
}

func (qt *Quadtree[T]) Rect() Rect {
	return qt.rect
}

func (qt *Quadtree[T]) Capacity() int {
	return qt.capacity
}

func (qt *Quadtree[T]) Divided() bool {
	return qt.divided
}

// Empty reports whether the node is an undivided leaf holding nothing. On a
// root node it means nothing was indexed at all.
func (qt *Quadtree[T]) Empty() bool {
	return !qt.divided && len(qt.data) == 0
}

// Insert places the item in the tree. Items outside the node rect are ignored.
func (qt *Quadtree[T]) Insert(item T) error {
	if !qt.rect.Contains(item) {
		return nil
	}

	if !qt.divided {
		if len(qt.data) < qt.capacity {
			qt.data = append(qt.data, item)
			return nil
		}

		if err := qt.split(); err != nil {
			return err
		}
	}

	return qt.offer(item)
}

func (qt *Quadtree[T]) split() error {
	w, h := qt.rect.Width(), qt.rect.Height()
	if qt.limitArea && w <= MinSplitExtent && h <= MinSplitExtent {
		return errors.New("quadtree reached surface area limit").
			WithType(ErrTypeIndexExhausted).
			WithTag("w", w).
			WithTag("h", h).
			WithTag("capacity", qt.capacity)
	}

	nwRect, swRect, neRect, seRect := qt.rect.Quadrants()
	qt.ne = NewQuadtree[T](neRect, qt.capacity, qt.limitArea)
	qt.nw = NewQuadtree[T](nwRect, qt.capacity, qt.limitArea)
	qt.se = NewQuadtree[T](seRect, qt.capacity, qt.limitArea)
	qt.sw = NewQuadtree[T](swRect, qt.capacity, qt.limitArea)
	qt.divided = true

	data := qt.data
	qt.data = nil
	for _, item := range data {
		if err := qt.offer(item); err != nil {
			return err
		}
	}
	return nil
}

// offer forwards the item to every child and lets their containment test
// decide which one keeps it.
func (qt *Quadtree[T]) offer(item T) error {
	for _, child := range qt.children() {
		if err := child.Insert(item); err != nil {
			return err
		}
	}
	return nil
}

func (qt *Quadtree[T]) children() [4]*Quadtree[T] {
	return [4]*Quadtree[T]{qt.ne, qt.nw, qt.se, qt.sw}
}

// Query returns the items of every leaf whose rect intersects area. Leaves are
// not filtered, callers must check the exact position of each returned item.
// The returned slice must not be modified.
func (qt *Quadtree[T]) Query(area Rect) []T {
	if !area.Intersects(qt.rect) {
		return nil
	}
	if !qt.divided {
		return qt.data
	}

	var queried []T
	for _, child := range qt.children() {
		queried = append(queried, child.Query(area)...)
	}
	return queried
}

func (qt *Quadtree[T]) GetDebugInfo() SpatialDebugInfo {
	result := SpatialDebugInfo{
		Capacity:  qt.capacity,
		Min_point: qt.rect.A,
		Max_point: qt.rect.B,
	}
	qt.collectDebugInfo(&result, 1)
	return result
}

func (qt *Quadtree[T]) collectDebugInfo(info *SpatialDebugInfo, depth uint32) {
	info.NodeCount++
	if depth > info.Depth {
		info.Depth = depth
	}

	if !qt.divided {
		occupied := (uint32)(len(qt.data))
		info.LeafCount++
		info.ItemCount += occupied
		if occupied > info.MaxLeafOccupied {
			info.MaxLeafOccupied = occupied
		}
		return
	}

	for _, child := range qt.children() {
		child.collectDebugInfo(info, depth+1)
	}
}
