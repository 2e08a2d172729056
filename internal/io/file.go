// Package ioutils provides file system utilities for the wfmu-downloader.
//
// This package contains functions for:
//   - Filename cleaning and sanitization
//   - Directory creation
//   - Cached file lookups
//   - Atomic publishing of finished downloads
package ioutils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxFileNameBytes is the longest file name, in bytes, that common file
// systems accept.
const MaxFileNameBytes = 255

// renameFunc is swapped by tests to simulate rename failures such as EXDEV.
var renameFunc = os.Rename

var (
	invalidChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots  = regexp.MustCompile(`\.+$`)
	multiSpace    = regexp.MustCompile(`\s+`)
	pathSeparator = regexp.MustCompile(`[/\\]`)
)

// CrossDeviceError reports a rename that failed because the temporary and
// final paths live on different file systems. Downloads never fall back to
// copy+delete, since that would expose a partially written file.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cannot rename %q to %q across file systems: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a CrossDeviceError.
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// CleanFileName turns an episode label into a file name.
//
// Path separators become an en dash, remaining slashes and backslashes become
// a hyphen, the first "&amp;" becomes "and" and the first "&nbsp;" a space.
// The result is then passed through SanitizeFileName.
//
// Example:
//
//	CleanFileName("[3] Rock & Roll &amp; Soul") // "[3] Rock & Roll and Soul"
func CleanFileName(name string) string {
	name = strings.ReplaceAll(name, string(filepath.Separator), "–")
	name = pathSeparator.ReplaceAllString(name, "-")
	name = strings.Replace(name, "&amp;", "and", 1)
	name = strings.Replace(name, "&nbsp;", " ", 1)
	return SanitizeFileName(name)
}

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Leading and trailing whitespace → removed
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2")     // Returns "Song_ Part 1_2"
//	SanitizeFileName("Track...")           // Returns "Track"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
//
// The result is at most MaxFileNameBytes long.
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return TruncateFileName(strings.TrimSpace(name), MaxFileNameBytes)
}

// TruncateFileName cuts name to at most limit bytes without splitting a
// UTF-8 sequence, then drops any trailing dots or spaces left at the cut.
//
// Example:
//
//	TruncateFileName("[1] Rock and Roll", 8) // "[1] Rock"
func TruncateFileName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	if limit <= 0 {
		return ""
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return strings.TrimRight(name[:cut], ". ")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// CachedSize reports the size of a previously published file.
//
// Any stat failure counts as "not cached", so a download is attempted and the
// real problem surfaces there.
func CachedSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

// Publish moves a finished temporary file onto its final path and returns
// the size of the published file.
//
// Any existing file at dst is removed first. The rename is the only step that
// makes content visible at dst, so readers never observe a partial file.
func Publish(src, dst string) (int64, error) {
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	if err := Rename(src, dst); err != nil {
		return 0, err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Rename wraps os.Rename and marks EXDEV failures as CrossDeviceError.
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// WriteFileAtomic writes data next to path under a temporary name and
// publishes it with Publish. The temporary file is removed on failure.
func WriteFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	published := false
	defer func() {
		_ = tmp.Close()
		if !published {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if _, err := Publish(tmpName, path); err != nil {
		return err
	}
	published = true
	return nil
}
