package report

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	archiveVersion = 1
	archiveExt     = ".report"
)

// archiveMetadata is written ahead of each archived report.
type archiveMetadata struct {
	ReportID  uuid.UUID
	Timestamp time.Time
	Version   int
	Checksum  string
}

// SaveToFile writes the report to directory as a gzipped gob file named after the
// report ID.
func (r *Report) SaveToFile(directory string) (string, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(directory, r.ID.String()+archiveExt)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gzipWriter)

	metadata := archiveMetadata{
		ReportID:  r.ID,
		Timestamp: time.Now(),
		Version:   archiveVersion,
		Checksum:  r.Checksum,
	}
	if err := encoder.Encode(&metadata); err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := encoder.Encode(r); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to flush report: %w", err)
	}
	return filename, nil
}

// LoadFromFile reads an archived report and verifies its checksum.
func LoadFromFile(directory string, id uuid.UUID) (*Report, error) {
	filename := filepath.Join(directory, id.String()+archiveExt)

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := gob.NewDecoder(gzipReader)

	var metadata archiveMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != archiveVersion {
		return nil, fmt.Errorf("unsupported report version: %d", metadata.Version)
	}

	var r Report
	if err := decoder.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if got := r.ComputeChecksum(); got != metadata.Checksum {
		return nil, fmt.Errorf("report %s checksum mismatch: stored %s, computed %s", id, metadata.Checksum, got)
	}
	return &r, nil
}

// Archive stores analysed reports on disk.
type Archive struct {
	logger  *zap.Logger
	mu      sync.Mutex
	saveDir string
}

// NewArchive creates an archive rooted at saveDir.
func NewArchive(logger *zap.Logger, saveDir string) *Archive {
	return &Archive{
		logger:  logger,
		saveDir: saveDir,
	}
}

// Save writes a report to the archive.
func (a *Archive) Save(r *Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	filename, err := r.SaveToFile(a.saveDir)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	if a.logger != nil {
		a.logger.Info("saved report to disk",
			zap.String("report_id", r.ID.String()),
			zap.String("map", r.MapName),
			zap.String("file", filename),
		)
	}
	return nil
}

// Load reads a report from the archive.
func (a *Archive) Load(id uuid.UUID) (*Report, error) {
	r, err := LoadFromFile(a.saveDir, id)
	if err != nil {
		return nil, err
	}

	if a.logger != nil {
		a.logger.Debug("loaded report from disk",
			zap.String("report_id", id.String()),
			zap.String("map", r.MapName),
		)
	}
	return r, nil
}

// List returns the IDs of archived reports, sorted.
func (a *Archive) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(a.saveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, archiveExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, archiveExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids, nil
}
