package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"stockpicks/internal/domain"
)

// DirSource reads the catalog and snapshots from a local directory, as
// laid out by the snapshot generator.
type DirSource struct {
	dir         string
	catalogName string
	dec         decoder
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir, catalogName string, repair bool, log *slog.Logger) *DirSource {
	if catalogName == "" {
		catalogName = "index.json"
	}
	return &DirSource{
		dir:         dir,
		catalogName: catalogName,
		dec:         decoder{repair: repair, log: log},
	}
}

// Catalog reads <dir>/index.json.
func (s *DirSource) Catalog(ctx context.Context) ([]string, error) {
	data, err := s.read(ctx, s.catalogName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return s.dec.catalog(data)
}

// Snapshot reads <dir>/<name>.
func (s *DirSource) Snapshot(ctx context.Context, name string) ([]domain.StockRecord, error) {
	data, err := s.read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotUnavailable, name, err)
	}
	return s.dec.snapshot(name, data)
}

func (s *DirSource) read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Names come from the catalog or from clients; keep them inside dir.
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	return os.ReadFile(filepath.Join(s.dir, name))
}
