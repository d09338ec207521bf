package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalBlobs stores blobs as files under a root directory.
type LocalBlobs struct {
	root   string
	logger *zap.Logger
}

var _ Blobs = (*LocalBlobs)(nil)

// NewLocalBlobs creates the root directory if needed.
func NewLocalBlobs(root string, logger *zap.Logger) (*LocalBlobs, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root %s: %w", root, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	return &LocalBlobs{root: abs, logger: logger}, nil
}

// Root returns the absolute root directory.
func (l *LocalBlobs) Root() string { return l.root }

// Put removes any existing file at p and writes data through a temporary file
// in the same directory, so readers never observe a partial write.
func (l *LocalBlobs) Put(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove existing blob %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write blob %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close blob %s: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("publish blob %s: %w", p, err)
	}
	l.logger.Debug("blob stored", zap.String("path", p), zap.Int("size", len(data)))
	return nil
}

// Get reads the blob at p.
func (l *LocalBlobs) Get(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := l.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", p, err)
	}
	return data, nil
}

// Delete removes the blob at p.
func (l *LocalBlobs) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", p, err)
	}
	return nil
}

// resolve maps a blob path to a file under root, rejecting escapes.
func (l *LocalBlobs) resolve(p string) (string, error) {
	slashed := strings.ReplaceAll(p, "\\", "/")
	clean := path.Clean("/" + slashed)
	if clean == "/" || hasParentSegment(slashed) {
		l.logger.Warn("blocked blob path", zap.String("path", p))
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean[1:])), nil
}

// hasParentSegment reports whether any element of a slash path is "..".
// Names that merely contain two dots, like "stock..v2.csv", are fine.
func hasParentSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
