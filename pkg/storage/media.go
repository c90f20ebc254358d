// Package storage manages the durable media tree: uploaded event images
// and ingested report files, partitioned by category, type and date.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// MediaStore writes files under a fixed root using
// <category>/<type>/<YYYY-MM-DD>/<name> partitioning. Paths returned to
// callers are relative to the root so the root can move between hosts.
type MediaStore struct {
	root string
}

func NewMediaStore(root string) *MediaStore {
	return &MediaStore{root: root}
}

// Root returns the absolute media root.
func (store *MediaStore) Root() string { return store.root }

// Abs resolves a stored relative path against the media root.
func (store *MediaStore) Abs(rel string) string {
	return filepath.Join(store.root, rel)
}

// partition builds the relative directory for a category/type/date triple.
func partition(category, kind string, ts time.Time) string {
	return filepath.Join(category, kind, ts.Format("2006-01-02"))
}

// SaveBytes stores data as a new file in the partitioned tree and returns
// its relative path. The file name is server-generated to avoid collisions
// between devices.
func (store *MediaStore) SaveBytes(category, kind string, ts time.Time, ext string, data []byte) (string, error) {
	dir := partition(category, kind, ts)
	if err := os.MkdirAll(filepath.Join(store.root, dir), 0o755); err != nil {
		return "", err
	}
	rel := filepath.Join(dir, uuid.NewString()+ext)
	if err := os.WriteFile(filepath.Join(store.root, rel), data, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// ImportFile copies an existing file into the partitioned tree, keeping its
// base name, and returns the relative path. The source is left in place:
// callers move it to a quarantine folder only after their database write
// resolves, so a crash mid-import never loses the original.
func (store *MediaStore) ImportFile(category, kind string, ts time.Time, srcPath string) (string, error) {
	dir := partition(category, kind, ts)
	if err := os.MkdirAll(filepath.Join(store.root, dir), 0o755); err != nil {
		return "", err
	}
	rel := filepath.Join(dir, filepath.Base(srcPath))
	if err := copyFile(srcPath, filepath.Join(store.root, rel)); err != nil {
		return "", err
	}
	return rel, nil
}

func copyFile(srcPath, dstPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dstPath)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dstPath)
		return closeErr
	}
	return nil
}

// ClaimFileToDir renames src into dstDir. Rename is atomic on the same
// filesystem, so of two concurrent sweeps trying to file the same source
// only one succeeds; the loser sees claimed=false and must treat the file
// as owned elsewhere. Collisions on the destination name get a nanosecond
// suffix rather than overwriting.
func ClaimFileToDir(srcPath, dstDir string) (string, bool, error) {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", false, err
	}
	base := filepath.Base(srcPath)
	dstPath := filepath.Join(dstDir, base)
	if _, err := os.Stat(dstPath); err == nil {
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		dstPath = filepath.Join(dstDir, fmt.Sprintf("%s-%d%s", name, time.Now().UnixNano(), ext))
	}

	if err := os.Rename(srcPath, dstPath); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return dstPath, true, nil
}
