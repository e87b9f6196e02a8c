// Package fileutil reads and replaces small JSON state files.
package fileutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPath indicates an empty file path was provided.
var ErrEmptyPath = errors.New("path is empty")

// ReadJSON decodes the JSON file at path into v. found is false when the
// file does not exist; v is left untouched then.
func ReadJSON(path string, v any) (found bool, err error) {
	if path == "" {
		return false, ErrEmptyPath
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// WriteJSON encodes v as indented JSON and writes it atomically, creating
// the parent directory with 0o700 when missing.
func WriteJSON(path string, v any, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return replaceFile(path, append(data, '\n'), perm)
}

// replaceFile swaps data in for path through a synced sibling temp file, so
// readers see either the old or the new content.
func replaceFile(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil { //nolint:gosec // G703: path comes from configuration
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}

	// the rename is durable once the directory entry is
	if d, openErr := os.Open(dir); openErr == nil { //nolint:gosec // G304: dir is derived from path
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
