package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileCleanupConfig bounds the filesystem sweeps.
type FileCleanupConfig struct {
	LogDir           string
	LogRetentionDays int
	MaxLogFiles      int
	TempDir          string
	TempMaxAge       time.Duration
}

// Filename patterns the collectors leave behind in the temp directory.
var tempPatterns = []string{"mlb_*", "statcast_*", "fangraphs_*", "*.tmp"}

// CleanLogs removes log files past retention, then enforces the file-count
// cap by removing the oldest survivors. The glob picks up rotated files
// (app.log.1, app.log.2.gz) alongside the live ones.
func (e *Engine) CleanLogs() FileResult {
	result := FileResult{Directory: e.files.LogDir}

	if e.files.LogDir == "" {
		return result
	}

	entries, err := filepath.Glob(filepath.Join(e.files.LogDir, "*.log*"))
	if err != nil {
		result.Error = fmt.Sprintf("scan logs: %v", err)
		return result
	}

	type logFile struct {
		path    string
		modTime time.Time
		size    int64
	}

	var files []logFile
	for _, path := range entries {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, logFile{path: path, modTime: info.ModTime(), size: info.Size()})
	}

	cutoff := e.now().AddDate(0, 0, -e.files.LogRetentionDays)

	var kept []logFile
	for _, f := range files {
		if f.modTime.Before(cutoff) {
			if err := os.Remove(f.path); err != nil {
				e.logger.Warn("remove log failed", "path", f.path, "error", err)
				continue
			}
			result.FilesRemoved++
			result.BytesFreed += f.size
		} else {
			kept = append(kept, f)
		}
	}

	// Oldest first, trim down to the cap.
	if e.files.MaxLogFiles > 0 && len(kept) > e.files.MaxLogFiles {
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].modTime.Before(kept[j].modTime)
		})
		for _, f := range kept[:len(kept)-e.files.MaxLogFiles] {
			if err := os.Remove(f.path); err != nil {
				e.logger.Warn("remove log failed", "path", f.path, "error", err)
				continue
			}
			result.FilesRemoved++
			result.BytesFreed += f.size
		}
	}

	if result.FilesRemoved > 0 {
		e.logger.Info("log files cleaned",
			"dir", e.files.LogDir,
			"removed", result.FilesRemoved,
			"bytes", result.BytesFreed,
		)
	}

	return result
}

// CleanTempFiles removes collector droppings older than the configured age.
// Stale scratch directories go too, with their contents.
func (e *Engine) CleanTempFiles() FileResult {
	dir := e.files.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	result := FileResult{Directory: dir}

	cutoff := e.now().Add(-e.files.TempMaxAge)

	for _, pattern := range tempPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			result.Error = fmt.Sprintf("scan temp files: %v", err)
			return result
		}

		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}

			if info.IsDir() {
				size := treeSize(path)
				if err := os.RemoveAll(path); err != nil {
					e.logger.Warn("remove temp dir failed", "path", path, "error", err)
					continue
				}
				result.FilesRemoved++
				result.BytesFreed += size
				continue
			}

			if err := os.Remove(path); err != nil {
				e.logger.Warn("remove temp file failed", "path", path, "error", err)
				continue
			}
			result.FilesRemoved++
			result.BytesFreed += info.Size()
		}
	}

	if result.FilesRemoved > 0 {
		e.logger.Info("temp files cleaned",
			"dir", dir,
			"removed", result.FilesRemoved,
			"bytes", result.BytesFreed,
		)
	}

	return result
}

// treeSize sums the regular files under a directory. Walk errors are
// ignored: the directory is about to be removed anyway.
func treeSize(root string) int64 {
	var size int64
	_ = filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
