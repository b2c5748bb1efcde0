// Package source fetches the snapshot catalog and snapshot files from
// upstream, either over HTTP or from a local directory.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kaptinlin/jsonrepair"

	"stockpicks/internal/config"
	"stockpicks/internal/domain"
)

var (
	// ErrCatalogUnavailable means the catalog could not be fetched or decoded.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrSnapshotUnavailable means a snapshot could not be fetched or decoded.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
)

// Source provides read-only access to the catalog and snapshot files.
type Source interface {
	Catalog(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, name string) ([]domain.StockRecord, error)
}

// New builds the Source selected by cfg.Kind.
func New(cfg config.Source, log *slog.Logger) (Source, error) {
	switch cfg.Kind {
	case "http":
		return NewHTTPSource(cfg, log), nil
	case "dir":
		return NewDirSource(cfg.DataDir, cfg.CatalogName, cfg.RepairJSON, log), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// decoder turns raw bytes into catalog and snapshot values.
type decoder struct {
	repair bool
	log    *slog.Logger
}

func (d decoder) unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil || !d.repair {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return fmt.Errorf("%w (repair failed: %v)", err, rerr)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return err
	}
	d.log.Debug("repaired malformed json")
	return nil
}

func (d decoder) catalog(data []byte) ([]string, error) {
	var names []string
	if err := d.unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrCatalogUnavailable, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// snapshot decodes a snapshot file and drops records that fail validation.
func (d decoder) snapshot(name string, data []byte) ([]domain.StockRecord, error) {
	var raw []domain.StockRecord
	if err := d.unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding: %v", ErrSnapshotUnavailable, name, err)
	}
	records := make([]domain.StockRecord, 0, len(raw))
	for i, r := range raw {
		if err := r.Validate(); err != nil {
			d.log.Warn("skipping invalid record", "file", name, "index", i, "error", err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
