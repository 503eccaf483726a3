// Package archive stores raw match report blobs outside the database, on
// local disk or in an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/config"
)

// ErrNotFound is returned by Load for unknown keys.
var ErrNotFound = errors.New("archived report not found")

// Archiver stores and retrieves report blobs by key.
type Archiver interface {
	Store(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// ReportKey returns the archive key of a report:
// reports/<csid>/<ccid>_<profile>.bin.
func ReportKey(csid, ccid string, profileID int) string {
	return path.Join("reports", sanitize(csid), fmt.Sprintf("%s_%d.bin", sanitize(ccid), profileID))
}

// sanitize keeps key segments inside their directory.
func sanitize(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// New builds the archiver selected by cfg. The "none" backend yields a nil
// Archiver.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Backend {
	case "none", "":
		log.Info().Msg("report archive disabled")
		return nil, nil
	case "disk":
		a, err := NewDiskArchiver(cfg.Directory)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "s3":
		a, err := NewS3Archiver(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// DiskArchiver writes blobs below a root directory.
type DiskArchiver struct {
	root string
}

func NewDiskArchiver(root string) (*DiskArchiver, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", root, err)
	}
	log.Info().Str("directory", root).Msg("report archive on disk")
	return &DiskArchiver{root: root}, nil
}

func (a *DiskArchiver) Store(ctx context.Context, key string, data []byte) error {
	full := filepath.Join(a.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (a *DiskArchiver) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.root, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
