package audit

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// HistoryEntry is the sqlite row mirroring one audit record, kept for
// queryable run history alongside the canonical CSV log.
type HistoryEntry struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	InputPath   string `gorm:"index"`
	OutputPath  string
	Strategy    string
	OldSize     int64
	NewSize     int64
	SavedSize   int64
	Status      string `gorm:"index"`
	Detail      string
	BeforeVideo string
	AfterVideo  string
	BeforeAudio string
	AfterAudio  string
	BeforeDV    bool
	AfterDV     bool
	BitDepth    int
}

// History is the sqlite-backed recorder.
type History struct {
	db  *gorm.DB
	log hclog.Logger
}

// OpenHistory opens (creating if needed) the history database and migrates
// the schema.
func OpenHistory(path string, log hclog.Logger) (*History, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&HistoryEntry{}); err != nil {
		return nil, err
	}
	return &History{db: db, log: log}, nil
}

func (h *History) Record(rec Record) {
	entry := HistoryEntry{
		CreatedAt:   rec.Timestamp,
		InputPath:   rec.InputPath,
		OutputPath:  rec.OutputPath,
		Strategy:    rec.Strategy,
		OldSize:     rec.OldSize,
		NewSize:     rec.NewSize,
		SavedSize:   rec.SavedSize,
		Status:      rec.Status,
		Detail:      rec.Detail,
		BeforeVideo: rec.BeforeVideo,
		AfterVideo:  rec.AfterVideo,
		BeforeAudio: rec.BeforeAudio,
		AfterAudio:  rec.AfterAudio,
		BeforeDV:    rec.BeforeDV,
		AfterDV:     rec.AfterDV,
		BitDepth:    rec.BitDepth,
	}
	if err := h.db.Create(&entry).Error; err != nil {
		h.log.Warn("history record dropped", "input", rec.InputPath, "error", err)
	}
}

func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
