// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the overlay packages.
package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempPrefix starts the name of every in-flight temp file. Directory
// watchers skip names with this prefix.
const TempPrefix = ".tmp-"

type writeOptions struct {
	sync bool
}

// WriteOption tunes AtomicWriteFile.
type WriteOption func(*writeOptions)

// NoSync skips the fsync before rename. Readers still never see a partial
// file, but a crash may lose the write.
func NoSync() WriteOption {
	return func(o *writeOptions) { o.sync = false }
}

// AtomicWriteFile writes data next to path under TempPrefix, then renames
// it into place, so readers see either the old file or the complete new
// one. Parent directories are created as needed.
func AtomicWriteFile(path string, data []byte, perm os.FileMode, opts ...WriteOption) (err error) {
	o := writeOptions{sync: true}
	for _, fn := range opts {
		fn(&o)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("atomic write: create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, TempPrefix)
	if err != nil {
		return fmt.Errorf("atomic write: create temp: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if o.sync {
		if err = f.Sync(); err != nil {
			return fmt.Errorf("atomic write: sync: %w", err)
		}
	}
	// Windows cannot rename an open file.
	if err = f.Close(); err != nil {
		return fmt.Errorf("atomic write: close: %w", err)
	}
	if err = os.Chmod(tmp, perm); err != nil {
		return fmt.Errorf("atomic write: chmod: %w", err)
	}
	if err = os.Rename(tmp, absPath); err != nil {
		return fmt.Errorf("atomic write: rename: %w", err)
	}
	return nil
}
