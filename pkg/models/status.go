package models

// UtilizationSample is one point of the host CPU utilization history
type UtilizationSample struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// MethodStatus is the per-method part of a status snapshot. Nil fields were
// not reported by the source.
type MethodStatus struct {
	Running    *bool   `json:"running,omitempty"`
	Progress   *int    `json:"progress,omitempty"`
	LastResult *string `json:"last_result,omitempty"`
}

// StatusSnapshot is one pull from the authoritative status source. A nil
// field means the source did not supply it; an empty non-nil Logs slice means
// the source supplied an empty log.
type StatusSnapshot struct {
	Logs               []string
	Running            *bool
	Methods            map[MethodID]MethodStatus
	UtilizationHistory []UtilizationSample
}
