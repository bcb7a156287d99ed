package spatial

type SpatialDebugInfo struct {
	Capacity        int
	NodeCount       uint32
	LeafCount       uint32
	Depth           uint32
	ItemCount       uint32
	MaxLeafOccupied uint32
	Min_point       Vector2
	Max_point       Vector2
}

type SpatialPartition[T HasPosition] interface {
	Insert(item T) error
	Query(area Rect) []T

	// debug stuff:
	GetDebugInfo() SpatialDebugInfo
}
