package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/utils/logger"
)

const (
	// DefaultBoltFilePath is the default path for the BoltDB file
	DefaultBoltFilePath = "bankctl-history.db"

	// DefaultBoltFileMode is the default file mode for the BoltDB file
	DefaultBoltFileMode = 0600

	// DefaultBoltTimeout is the default timeout for BoltDB operations
	DefaultBoltTimeout = 1 * time.Second
)

// runBucket holds run reports keyed by zero-padded start nanos + run ID so a
// forward cursor walks runs oldest to newest. runIndexBucket maps run ID to
// that chronological key.
var (
	runBucket      = []byte("runs")
	runIndexBucket = []byte("runs_by_id")
)

// BoltRunStore implements the RunStore interface using BoltDB
type BoltRunStore struct {
	db      *bolt.DB
	path    string
	options *BoltOptions
}

// BoltOptions configures the BoltDB storage
type BoltOptions struct {
	// Path to the BoltDB file
	Path string
	// File mode for the BoltDB file
	FileMode os.FileMode
	// Timeout for BoltDB operations
	Timeout time.Duration
}

// NewBoltRunStore creates a new BoltRunStore with the given options
func NewBoltRunStore(opts *BoltOptions) *BoltRunStore {
	if opts == nil {
		opts = &BoltOptions{}
	}

	// Set default options if not provided
	if opts.Path == "" {
		opts.Path = DefaultBoltFilePath
	}
	if opts.FileMode == 0 {
		opts.FileMode = DefaultBoltFileMode
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultBoltTimeout
	}

	return &BoltRunStore{
		path:    opts.Path,
		options: opts,
	}
}

// Open initializes the BoltDB database
func (s *BoltRunStore) Open() error {
	logger.Debug("Opening run history database", zap.String("path", s.path))

	// Make sure the directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for database: %w", err)
	}

	db, err := bolt.Open(s.path, s.options.FileMode, &bolt.Options{Timeout: s.options.Timeout})
	if err != nil {
		return fmt.Errorf("failed to open BoltDB: %w", err)
	}
	s.db = db

	// Initialize the buckets
	err = s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(runBucket); err != nil {
			return fmt.Errorf("failed to create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(runIndexBucket); err != nil {
			return fmt.Errorf("failed to create run index bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		// Close the database if initialization fails
		s.db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	return nil
}

// Close closes the BoltDB database
func (s *BoltRunStore) Close() error {
	if s.db != nil {
		logger.Debug("Closing run history database")
		return s.db.Close()
	}
	return nil
}

// SaveRun stores a finished run report
func (s *BoltRunStore) SaveRun(ctx context.Context, report *model.RunReport) error {
	logger.Debug("Saving run report", zap.String("id", report.ID))

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	key := runKey(report)
	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runBucket)
		index := tx.Bucket(runIndexBucket)
		if runs == nil || index == nil {
			return fmt.Errorf("runs buckets not found")
		}

		// Re-saving the same run replaces the previous entry in place.
		if old := index.Get([]byte(report.ID)); old != nil && string(old) != string(key) {
			if err := runs.Delete(old); err != nil {
				return fmt.Errorf("failed to drop stale run entry: %w", err)
			}
		}

		if err := runs.Put(key, data); err != nil {
			return fmt.Errorf("failed to store run report: %w", err)
		}
		if err := index.Put([]byte(report.ID), key); err != nil {
			return fmt.Errorf("failed to index run report: %w", err)
		}
		return nil
	})
}

// GetRun retrieves a run report by its ID
func (s *BoltRunStore) GetRun(ctx context.Context, id string) (*model.RunReport, error) {
	var report *model.RunReport
	err := s.db.View(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runBucket)
		index := tx.Bucket(runIndexBucket)
		if runs == nil || index == nil {
			return fmt.Errorf("runs buckets not found")
		}

		key := index.Get([]byte(id))
		if key == nil {
			return ErrRunNotFound{RunID: id}
		}

		data := runs.Get(key)
		if data == nil {
			return ErrRunNotFound{RunID: id}
		}

		var r model.RunReport
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to unmarshal run report: %w", err)
		}
		report = &r
		return nil
	})
	return report, err
}

// ListRuns retrieves run reports newest first, up to limit entries.
func (s *BoltRunStore) ListRuns(ctx context.Context, limit int) ([]*model.RunReport, error) {
	var reports []*model.RunReport
	err := s.db.View(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runBucket)
		if runs == nil {
			return fmt.Errorf("runs bucket not found")
		}

		// Keys are chronological, so walking the cursor backwards yields
		// newest first.
		c := runs.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(reports) >= limit {
				break
			}
			var r model.RunReport
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal run report: %w", err)
			}
			reports = append(reports, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// DeleteRun removes a run report from the history
func (s *BoltRunStore) DeleteRun(ctx context.Context, id string) error {
	logger.Debug("Deleting run report", zap.String("id", id))
	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runBucket)
		index := tx.Bucket(runIndexBucket)
		if runs == nil || index == nil {
			return fmt.Errorf("runs buckets not found")
		}

		key := index.Get([]byte(id))
		if key == nil {
			return ErrRunNotFound{RunID: id}
		}

		if err := runs.Delete(key); err != nil {
			return fmt.Errorf("failed to delete run report: %w", err)
		}
		if err := index.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete run index entry: %w", err)
		}
		return nil
	})
}

// runKey builds the chronological bucket key for a report. Zero-padded
// nanoseconds sort lexicographically in time order; the ID suffix keeps keys
// unique when two runs share a start instant.
func runKey(report *model.RunReport) []byte {
	return []byte(fmt.Sprintf("%020d/%s", report.StartedAt.UnixNano(), report.ID))
}
