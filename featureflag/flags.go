package featureflag

type Flag string

const (
	// Frames are not broadcast to connected viewers.
	FlagDisableViewerBroadcast Flag = "DISABLE_VIEWER_BROADCAST"

	// Frames are dispatched without a state digest.
	FlagDisableStateDigest Flag = "DISABLE_STATE_DIGEST"

	// Quadtree shape gauges are not updated.
	FlagDisableIndexMetrics Flag = "DISABLE_INDEX_METRICS"
)
