package metrics

// Collector captures counters, gauges and histograms.
type Collector interface {
	IncCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
	ObserveHistogram(name string, labels map[string]string, value float64)
}

// Metric names reported by the store.
const (
	UpdatesTotal    = "updates_total"
	UpdateSeconds   = "update_duration_seconds"
	SelectsTotal    = "selects_total"
	SelectSeconds   = "select_duration_seconds"
	FlushesTotal    = "flushes_total"
	FlushSeconds    = "flush_duration_seconds"
	SnapshotBytes   = "snapshot_bytes"
	CommitLogBytes  = "commit_log_bytes"
	RowsTotal       = "rows"
	LiveRows        = "live_ids"
	ReplayedRecords = "replayed_records_total"
)

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, map[string]string, float64)       {}
func (Nop) SetGauge(string, map[string]string, float64)         {}
func (Nop) ObserveHistogram(string, map[string]string, float64) {}
