package audit

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/reclaimer/internal/retry"
)

// CSV write contention (an external reader holding the file open with a
// lock) is transient; retry a few times with randomized backoff, then drop
// the record with a warning rather than abort processing.
const (
	csvWriteAttempts = 5
	csvBackoffBase   = 200 * time.Millisecond
)

var csvHeader = []string{
	"timestamp", "input", "output", "strategy",
	"old_size", "new_size", "saved_size",
	"status", "detail",
	"before_video", "after_video", "before_audio", "after_audio",
	"before_dv", "after_dv", "bit_depth",
}

// CSVSink appends records to a CSV file with a fixed column schema. The
// file is opened per write so an external reader never holds our handle
// hostage between records.
type CSVSink struct {
	path string
	log  hclog.Logger
}

// NewCSVSink creates the sink and writes the header row if the file does
// not exist yet.
func NewCSVSink(path string, log hclog.Logger) (*CSVSink, error) {
	s := &CSVSink{path: path, log: log}
	fi, err := os.Stat(path)
	if err == nil && fi.Size() > 0 {
		return s, nil
	}
	if err := s.appendRow(csvHeader); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVSink) Record(rec Record) {
	row := []string{
		rec.Timestamp.Format(time.RFC3339),
		rec.InputPath,
		rec.OutputPath,
		rec.Strategy,
		strconv.FormatInt(rec.OldSize, 10),
		strconv.FormatInt(rec.NewSize, 10),
		strconv.FormatInt(rec.SavedSize, 10),
		rec.Status,
		rec.Detail,
		rec.BeforeVideo,
		rec.AfterVideo,
		rec.BeforeAudio,
		rec.AfterAudio,
		strconv.FormatBool(rec.BeforeDV),
		strconv.FormatBool(rec.AfterDV),
		strconv.Itoa(rec.BitDepth),
	}

	err := retry.Do(csvWriteAttempts, retry.Jittered(csvBackoffBase), func(int) error {
		return s.appendRow(row)
	})
	if err != nil {
		s.log.Warn("audit record dropped after retries", "path", s.path, "input", rec.InputPath, "error", err)
	}
}

func (s *CSVSink) appendRow(row []string) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func (s *CSVSink) Close() error { return nil }
