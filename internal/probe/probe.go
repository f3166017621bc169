// Package probe wraps the ffprobe binary to answer one question cheaply:
// what timestamp would the next, not-yet-downloaded segment have, given
// what has already been appended to a concatenated media file (spec §4.4).
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"
)

// Prober invokes ffprobe against a fixed binary path.
type Prober struct {
	BinaryPath string
}

func New(binaryPath string) *Prober {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	return &Prober{BinaryPath: binaryPath}
}

type probeOutput struct {
	Streams []struct {
		DurationTS string `json:"duration_ts"`
	} `json:"streams"`
}

// NextExpectedT reports the cumulative duration_ts of path, which equals
// the $Time$ value of the segment that would immediately follow what has
// been appended so far. ok is false on any failure (bad exit, unparsable
// output, no streams) — the caller treats that as "unknown" and falls back
// to a forward search (spec §4.4, §7 ProbeFailure).
func (p *Prober) NextExpectedT(ctx context.Context, path string) (t uint64, ok bool) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=duration_ts",
		"-print_format", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, p.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, false
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, false
	}
	if len(out.Streams) == 0 || out.Streams[0].DurationTS == "" {
		return 0, false
	}

	parsed, err := strconv.ParseUint(out.Streams[0].DurationTS, 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

type formatOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration reports the wall-clock duration of a finished media file, for
// the summary writer (spec §4.10). Not present in the original_source
// utils.py revision retrieved alongside the rest of the pack; implemented
// directly from spec.md's wording using the same ffprobe-invocation idiom
// as NextExpectedT.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, bool) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-print_format", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, p.BinaryPath, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return 0, false
	}

	var out formatOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil || out.Format.Duration == "" {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
