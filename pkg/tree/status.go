package tree

import "strings"

// Sensor status values after normalization.
const (
	StatusOnline  = "online"
	StatusWarning = "warning"
	StatusOffline = "offline"
)

// NormalizeStatus folds a raw status into online, warning or offline.
// "ok" and "0" count as online, "warn" as warning, and anything else
// (including the empty string) as offline.
func NormalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "online", "ok", "0":
		return StatusOnline
	case "warning", "warn":
		return StatusWarning
	default:
		return StatusOffline
	}
}

// Stats summarizes the sensors of a forest.
type Stats struct {
	Nodes   int `json:"nodes"`
	Roots   int `json:"roots"`
	Depth   int `json:"depth"`
	Sensors int `json:"sensors"`
	Online  int `json:"online"`
	Warning int `json:"warning"`
	Offline int `json:"offline"`
}

// ComputeStats counts nodes and classifies every sensor-typed node by its
// normalized status.
func ComputeStats(f *Forest) Stats {
	s := Stats{
		Nodes: f.Len(),
		Roots: len(f.roots),
		Depth: f.MaxDepth() + 1,
	}
	f.Walk(func(n *Node, _ int) bool {
		if !n.IsSensor() {
			return true
		}
		s.Sensors++
		switch NormalizeStatus(n.Status) {
		case StatusOnline:
			s.Online++
		case StatusWarning:
			s.Warning++
		default:
			s.Offline++
		}
		return true
	})
	return s
}
