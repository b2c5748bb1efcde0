package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"stockpicks/internal/domain"
	"stockpicks/internal/snapshot"
)

// Compile-time interface check.
var _ RankStore = (*ParquetStore)(nil)

// ParquetStore implements RankStore using one Parquet file per snapshot.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// WriteRanked writes picks to <DataDir>/<date>/<label>.parquet, replacing
// any previous file.
func (s *ParquetStore) WriteRanked(_ context.Context, file string, stocks []domain.RankedStock) error {
	path, err := s.path(file)
	if err != nil {
		return err
	}
	if err := writeParquetFile(path, ToRecords(file, stocks)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadRanked reads the picks written for file.
func (s *ParquetStore) ReadRanked(_ context.Context, file string) ([]domain.RankedStock, error) {
	path, err := s.path(file)
	if err != nil {
		return nil, err
	}
	rows, err := readParquetFile[PickRecord](path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", file, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })
	out := make([]domain.RankedStock, len(rows))
	for i, r := range rows {
		out[i] = r.ToRanked()
	}
	return out, nil
}

// ListFiles walks the data directory for archived snapshots.
func (s *ParquetStore) ListFiles(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.DataDir, "*", "*.parquet"))
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		label := strings.TrimSuffix(filepath.Base(m), ".parquet")
		files = append(files, snapshot.Prefix+label+snapshot.Ext)
	}
	sort.Strings(files)
	return files, nil
}

// path returns the filesystem path for a snapshot's picks.
// Layout: <DataDir>/<YYYY-MM-DD>/<label>.parquet
func (s *ParquetStore) path(file string) (string, error) {
	date, ok := snapshot.DateOf(file)
	if !ok || file != filepath.Base(file) {
		return "", fmt.Errorf("not a snapshot filename: %q", file)
	}
	return filepath.Join(s.DataDir, date, snapshot.Label(file)+".parquet"), nil
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
