// Package audit writes the append-only per-file outcome trail: one record
// per terminal pipeline state, carrying enough detail to reconstruct the
// decision afterwards. Records are write-once; nothing in the core ever
// updates or deletes them.
package audit

import (
	"time"
)

// Statuses recorded for terminal pipeline outcomes.
const (
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled-back"
	StatusCritical   = "critical"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// Record is one audit entry. The column order of the CSV sink follows the
// field order here.
type Record struct {
	Timestamp   time.Time
	InputPath   string
	OutputPath  string
	Strategy    string // Decision reason, e.g. codec-upgrade.
	OldSize     int64
	NewSize     int64
	SavedSize   int64
	Status      string
	Detail      string
	BeforeVideo string
	AfterVideo  string
	BeforeAudio string
	AfterAudio  string
	BeforeDV    bool
	AfterDV     bool
	BitDepth    int // 0 when no encode was attempted.
}

// Recorder accepts audit records. Implementations must never block
// processing on sink failure; dropping a record after bounded retries is
// preferable to aborting a file.
type Recorder interface {
	Record(rec Record)
	Close() error
}

// Multi fans every record out to several recorders.
type Multi []Recorder

func (m Multi) Record(rec Record) {
	for _, r := range m {
		r.Record(rec)
	}
}

func (m Multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard drops all records. Used in dry runs and tests.
type Discard struct{}

func (Discard) Record(Record) {}
func (Discard) Close() error  { return nil }
