package indexapi

// Manifest is an index definition as the server returns it.
type Manifest map[string]any

// ID returns the index id.
func (m Manifest) ID() string {
	s, _ := m["id"].(string)
	return s
}

// Name returns the index name.
func (m Manifest) Name() string {
	s, _ := m["name"].(string)
	return s
}

// Namespace returns the index namespace.
func (m Manifest) Namespace() string {
	s, _ := m["namespace"].(string)
	return s
}

// Status returns a copy of the status block.
func (m Manifest) Status() map[string]any {
	out := map[string]any{}
	if st, ok := m["status"].(map[string]any); ok {
		for k, v := range st {
			out[k] = v
		}
	}
	return out
}

// Locked reports whether status.locked_after is set.
func (m Manifest) Locked() bool {
	st, ok := m["status"].(map[string]any)
	return ok && st["locked_after"] != nil
}

// IntradayEnabled reports whether the index publishes intraday values. The field is
// either a bool or an object with an enabled flag.
func (m Manifest) IntradayEnabled() bool {
	switch v := m["intraday"].(type) {
	case bool:
		return v
	case map[string]any:
		enabled, _ := v["enabled"].(bool)
		return enabled
	default:
		return false
	}
}

// Clone returns a shallow copy.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Run states reported by the last_run_state endpoint.
const (
	RunPendingCreation = "PENDING_CREATION"
	RunRunning         = "RUNNING"
	RunSucceeded       = "SUCCEEDED"
	RunFailed          = "FAILED"
)

// RunState is the outcome of an index's most recent run.
type RunState struct {
	IndexID string `json:"index_id"`
	Status  string `json:"status"`
	RunDate string `json:"run_date,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Terminal reports whether the run has finished.
func (r RunState) Terminal() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed
}
