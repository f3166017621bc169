// Package mux implements the finaliser: concatenating the past and live
// staging files and invoking the muxer binary (spec §4.9).
package mux

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/qwer-lives/instarec/internal/store"
)

const (
	videoFullName = "video_full.mp4"
	audioFullName = "audio_full.mp4"
)

// Finalize runs on every exit path, including error and cancellation
// (spec §4.9, §7). It never returns an error for a muxer failure — that is
// reported through the logger and the staging directory is kept for
// inspection, matching original_source/instarec/merger.py's behavior of
// never propagating a mux failure as fatal. It does return an error for
// conditions that indicate a programming/filesystem problem unrelated to
// the muxer itself (failing to open an input for concatenation).
func Finalize(st *store.Store, ffmpegPath, outputPath string, keepSegments bool, log zerolog.Logger) error {
	if err := st.Close(); err != nil {
		return fmt.Errorf("mux: close staging files: %w", err)
	}

	videoFull := filepath.Join(st.Dir, videoFullName)
	audioFull := filepath.Join(st.Dir, audioFullName)

	if err := concat(videoFull, st.VideoPast.Path(), st.VideoLive.Path()); err != nil {
		return fmt.Errorf("mux: concatenate video: %w", err)
	}
	if err := concat(audioFull, st.AudioPast.Path(), st.AudioLive.Path()); err != nil {
		return fmt.Errorf("mux: concatenate audio: %w", err)
	}

	info, err := os.Stat(videoFull)
	if err != nil || info.Size() == 0 {
		log.Error().Msg("no video data was recorded; skipping mux")
		return nil
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", videoFull,
		"-i", audioFull,
		"-c", "copy",
	}
	if strings.EqualFold(filepath.Ext(outputPath), ".mp4") {
		args = append(args, "-movflags", "+faststart")
	}
	tmpOutput := outputPath + ".muxing"
	args = append(args, "-y", tmpOutput)

	cmd := exec.Command(ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmpOutput)
		log.Error().Str("stderr", stderr.String()).Err(err).Msg("muxer failed; keeping staging directory")
		return nil
	}

	// ffmpeg writes its own output file directly (it cannot write through
	// an *os.File handle we supply), so the crash-safety renameio gives
	// the summary writer in internal/summary is approximated here with a plain
	// same-filesystem rename into place once the muxer has exited 0: the
	// output path never observes a partially-written file.
	if err := os.Rename(tmpOutput, outputPath); err != nil {
		return fmt.Errorf("mux: move muxed output into place: %w", err)
	}

	if !keepSegments {
		if err := st.RemoveAll(); err != nil {
			log.Warn().Err(err).Msg("failed to remove staging directory after successful mux")
		}
	}
	return nil
}

// concat writes dst as the concatenation of every src that exists,
// skipping missing inputs silently (spec §4.9 step 1).
func concat(dst string, srcs ...string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, src := range srcs {
		if _, statErr := os.Stat(src); statErr != nil {
			continue
		}
		in, err := os.Open(src)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
