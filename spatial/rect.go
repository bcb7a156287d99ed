package spatial

// Rect is an axis-aligned rectangle defined by its top-left corner A and its
// bottom-right corner B.
//
//	A +---------+
//	  |         |
//	  +---------+ B
type Rect struct {
	A Vector2
	B Vector2
}

func NewRect(ax, ay, bx, by float64) Rect {
	return Rect{
		A: Vector2{ax, ay},
		B: Vector2{bx, by},
	}
}

func (r Rect) Width() float64 {
	return r.B.X - r.A.X
}

func (r Rect) Height() float64 {
	return r.B.Y - r.A.Y
}

func (r Rect) Center() Vector2 {
	return Vector2{r.A.X + r.Width()/2, r.A.Y + r.Height()/2}
}

// Intersects reports whether the two rectangles overlap. Rectangles that only
// touch on an edge or a corner do overlap.
func (r Rect) Intersects(other Rect) bool {
	return r.A.X <= other.B.X &&
		other.A.X <= r.B.X &&
		r.A.Y <= other.B.Y &&
		other.A.Y <= r.B.Y
}

// Contains reports whether the position of p lies strictly inside the
// rectangle. Points on the boundary are not contained.
func (r Rect) Contains(p HasPosition) bool {
	return r.ContainsPoint(p.Position())
}

func (r Rect) ContainsPoint(p Vector2) bool {
	return p.X > r.A.X &&
		p.X < r.B.X &&
		p.Y > r.A.Y &&
		p.Y < r.B.Y
}

// Quadrants splits the rectangle at the midpoints of its width and height.
func (r Rect) Quadrants() (nw, sw, ne, se Rect) {
	midX := r.A.X + r.Width()/2
	midY := r.A.Y + r.Height()/2

	nw = NewRect(r.A.X, r.A.Y, midX, midY)
	sw = NewRect(r.A.X, midY, midX, r.B.Y)
	ne = NewRect(midX, r.A.Y, r.B.X, midY)
	se = NewRect(midX, midY, r.B.X, r.B.Y)
	return nw, sw, ne, se
}

// SquareAround returns the square centered on c with the given half extent.
func SquareAround(c Vector2, halfExtent float64) Rect {
	return NewRect(c.X-halfExtent, c.Y-halfExtent, c.X+halfExtent, c.Y+halfExtent)
}
