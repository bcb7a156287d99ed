package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// logSummary logs the number of frames sent and dropped since the last
// summary of the viewer.
func (h *Hub) logSummary(v *viewer) {
	sent := v.sent.Swap(0)
	dropped := v.dropped.Swap(0)
	if sent == 0 && dropped == 0 {
		return
	}

	logs.WithTag("viewer_id", v.id).
		WithTag("format", v.format).
		WithTag("sent_frames", sent).
		WithTag("dropped_frames", dropped).
		WithTag("time_interval", h.SummaryInterval).
		Info("viewer frame summary")
}
