package hashstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
)

// File stores a zstd-compressed JSON snapshot of the whole index. Save
// replaces the snapshot atomically; callers extend the loaded index and save
// it back.
type File struct {
	path   string
	logger *slog.Logger
}

func NewFile(path string) *File {
	return &File{
		path:   path,
		logger: slog.Default().With("component", "hashstore-file", "path", path),
	}
}

// Load returns an empty index when the snapshot does not exist yet.
func (f *File) Load(_ context.Context) (lsh.InvertedIndex, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return lsh.InvertedIndex{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening hash index %s: %w", f.path, err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	var idx lsh.InvertedIndex
	if err := json.NewDecoder(dec).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding hash index %s: %w", f.path, err)
	}
	if idx == nil {
		idx = lsh.InvertedIndex{}
	}
	f.logger.Info("hash index loaded", "buckets", len(idx), "memberships", idx.Memberships())
	return idx, nil
}

// Save writes to a temporary file, syncs it and renames it over the snapshot.
func (f *File) Save(_ context.Context, idx lsh.InvertedIndex) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating hash index directory: %w", err)
	}
	tmpPath := f.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp hash index: %w", err)
	}
	defer os.Remove(tmpPath)
	defer file.Close()

	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(idx); err != nil {
		enc.Close()
		return fmt.Errorf("encoding hash index: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing zstd stream: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing hash index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing hash index: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("renaming hash index into place: %w", err)
	}
	f.logger.Info("hash index saved", "buckets", len(idx), "memberships", idx.Memberships())
	return nil
}
