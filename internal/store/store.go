// Package store manages the six append-only staging files a run writes
// segments into, named and laid out per original_source/instarec's
// downloader.py convention (spec §3, §4.3).
package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Staging file names, adopted from original_source/instarec/downloader.py
// (not mandated by spec.md, which names the files only by role).
const (
	VideoInitName = "video_init.m4v"
	AudioInitName = "audio_init.m4a"
	VideoPastName = "video_past.tmp"
	AudioPastName = "audio_past.tmp"
	VideoLiveName = "video_live.tmp"
	AudioLiveName = "audio_live.tmp"
)

// DirFor derives the staging directory from the output path: the output
// path with ".segments" appended to its existing suffix, e.g.
// "recording.mkv" -> "recording.mkv.segments".
func DirFor(outputPath string) string {
	return outputPath + ".segments"
}

// AppendFile is a single append-only destination. Exactly one worker may
// write to a given AppendFile for the lifetime of a run (spec §4.3); the
// mutex here only guards against programming errors, not contention
// between workers that shouldn't exist.
type AppendFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

// Create truncates (or creates) the file at path for appending.
func Create(path string) (*AppendFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: create %s: %w", path, err)
	}
	return &AppendFile{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Open opens an existing file in append mode.
func Open(path string) (*AppendFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &AppendFile{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes data to the buffered writer.
func (a *AppendFile) Append(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.w.Write(data)
	return err
}

// Flush ensures all buffered bytes reach the underlying file. Must be
// called before the file is read by anything else (the probe, the
// finaliser).
func (a *AppendFile) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Flush()
}

// Close flushes and closes the underlying file.
func (a *AppendFile) Close() error {
	if err := a.Flush(); err != nil {
		_ = a.f.Close()
		return err
	}
	return a.f.Close()
}

// Path returns the file's path on disk.
func (a *AppendFile) Path() string { return a.path }

// Store owns the staging directory and its six files for one run.
type Store struct {
	Dir string

	VideoInit *AppendFile
	AudioInit *AppendFile
	VideoPast *AppendFile
	AudioPast *AppendFile
	VideoLive *AppendFile
	AudioLive *AppendFile
}

// New creates the staging directory and the six files, all empty.
// VideoPast/AudioPast are seeded later, by SeedPastFromInit, with a
// byte-for-byte copy of the matching init file, so the concatenation is
// muxable from the first appended segment (spec §3).
func New(outputPath string) (*Store, error) {
	dir := DirFor(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	s := &Store{Dir: dir}
	var err error
	if s.VideoInit, err = Create(filepath.Join(dir, VideoInitName)); err != nil {
		return nil, err
	}
	if s.AudioInit, err = Create(filepath.Join(dir, AudioInitName)); err != nil {
		return nil, err
	}
	if s.VideoPast, err = Create(filepath.Join(dir, VideoPastName)); err != nil {
		return nil, err
	}
	if s.AudioPast, err = Create(filepath.Join(dir, AudioPastName)); err != nil {
		return nil, err
	}
	if s.VideoLive, err = Create(filepath.Join(dir, VideoLiveName)); err != nil {
		return nil, err
	}
	if s.AudioLive, err = Create(filepath.Join(dir, AudioLiveName)); err != nil {
		return nil, err
	}
	return s, nil
}

// SeedPastFromInit writes each init file's bytes into the head of its
// matching past file. Must run once, before the past worker appends
// anything.
func (s *Store) SeedPastFromInit() error {
	if err := s.VideoInit.Flush(); err != nil {
		return err
	}
	if err := s.AudioInit.Flush(); err != nil {
		return err
	}
	if err := copyFileInto(s.VideoPast, s.VideoInit.Path()); err != nil {
		return err
	}
	if err := copyFileInto(s.AudioPast, s.AudioInit.Path()); err != nil {
		return err
	}
	return nil
}

func copyFileInto(dst *AppendFile, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("store: open %s for seeding: %w", srcPath, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("store: read %s: %w", srcPath, err)
	}
	return dst.Append(data)
}

// Close flushes and closes all six files.
func (s *Store) Close() error {
	var firstErr error
	for _, f := range []*AppendFile{s.VideoInit, s.AudioInit, s.VideoPast, s.AudioPast, s.VideoLive, s.AudioLive} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RemoveAll deletes the staging directory.
func (s *Store) RemoveAll() error {
	return os.RemoveAll(s.Dir)
}
