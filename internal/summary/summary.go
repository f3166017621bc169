// Package summary writes the English/Korean loss report once a run
// finishes (spec §4.10).
package summary

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/qwer-lives/instarec/internal/session"
)

// DurationProber reports the wall-clock duration of a media file, e.g. via
// ffprobe's format=duration.
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, bool)
}

// Report is the set of fields a summary file is rendered from (spec
// §4.10), grounded on original_source/instarec/loss_check.py's
// create_summary_file field set and ordering.
type Report struct {
	OutputPath string
	FileSize   int64
	Duration   time.Duration
	HasOutput  bool
	Snapshot   session.Snapshot
}

// Build gathers a Report for the named output file from the session
// snapshot and, if the output exists, its size and probed duration.
func Build(ctx context.Context, outputPath string, snap session.Snapshot, prober DurationProber) Report {
	r := Report{OutputPath: outputPath, Snapshot: snap}

	info, err := os.Stat(outputPath)
	if err != nil {
		return r
	}
	r.HasOutput = true
	r.FileSize = info.Size()

	if prober != nil {
		if d, ok := prober.Duration(ctx, outputPath); ok {
			r.Duration = d
		}
	}
	return r
}

// WriteEnglish renders r in English and writes it atomically to path.
func WriteEnglish(path string, r Report) error {
	return write(path, render(r, message.NewPrinter(language.English), englishLabels))
}

// WriteKorean renders r in Korean and writes it atomically to path.
func WriteKorean(path string, r Report) error {
	return write(path, render(r, message.NewPrinter(language.Korean), koreanLabels))
}

func write(path, content string) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("summary: create pending file: %w", err)
	}
	defer pendingFile.Cleanup()

	if _, err := pendingFile.Write([]byte(content)); err != nil {
		return fmt.Errorf("summary: write %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("summary: replace %s: %w", path, err)
	}
	return nil
}

type labels struct {
	outputFile      string
	noSegments      string
	size            string
	bytesUnit       string
	duration        string
	firstSegmentTS  string
	totalSegments   string
	loss            string
	missingSegments string
	notAvailable    string
}

var englishLabels = labels{
	outputFile:      "Output File",
	noSegments:      "Status : No segments were downloaded.",
	size:            "Size",
	bytesUnit:       "bytes",
	duration:        "Duration",
	firstSegmentTS:  "First Segment TS",
	totalSegments:   "Total Segments (Expected)",
	loss:            "Loss",
	missingSegments: "Missing Segments",
	notAvailable:    "[N/A]",
}

var koreanLabels = labels{
	outputFile:      "출력 파일",
	noSegments:      "상태 : 다운로드된 세그먼트가 없습니다.",
	size:            "크기",
	bytesUnit:       "바이트",
	duration:        "재생 시간",
	firstSegmentTS:  "첫 세그먼트 타임스탬프",
	totalSegments:   "예상 세그먼트 총계",
	loss:            "손실",
	missingSegments: "누락된 세그먼트",
	notAvailable:    "[해당 없음]",
}

func render(r Report, p *message.Printer, l labels) string {
	var b strings.Builder

	fmt.Fprintf(&b, "* %s: %s\n", l.outputFile, r.OutputPath)

	if r.HasOutput {
		p.Fprintf(&b, "- %s: %d %s\n", l.size, r.FileSize, l.bytesUnit)
		fmt.Fprintf(&b, "- %s: %s\n", l.duration, formatDuration(r.Duration))
	}

	if r.Snapshot.TotalExpectedSegments == 0 {
		fmt.Fprintf(&b, "- %s\n\n", l.noSegments)
		return b.String()
	}

	firstTS := l.notAvailable
	if r.Snapshot.FirstSegmentT != nil {
		firstTS = fmt.Sprintf("%d", *r.Snapshot.FirstSegmentT)
	}
	fmt.Fprintf(&b, "- %s : %s\n", l.firstSegmentTS, firstTS)
	fmt.Fprintf(&b, "- %s : %d\n", l.totalSegments, r.Snapshot.TotalExpectedSegments)

	missCount := len(r.Snapshot.MissingSegments)
	pct := float64(missCount) / float64(r.Snapshot.TotalExpectedSegments) * 100
	fmt.Fprintf(&b, "- %s: %d/%d (%.2f%%)\n", l.loss, missCount, r.Snapshot.TotalExpectedSegments, pct)
	fmt.Fprintf(&b, "- %s: %s\n\n", l.missingSegments, formatMissing(r.Snapshot.MissingSegments))

	return b.String()
}

// formatMissing renders an already-sorted timestamp list (session.Snapshot
// guarantees the sort) in the Python-list-repr style
// original_source/instarec/loss_check.py emits.
func formatMissing(ts []uint64) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = fmt.Sprintf("%d", t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatDuration renders d as HH:MM:SS, extended with a day count if the
// duration is 24 hours or longer (spec §4.10).
func formatDuration(d time.Duration) string {
	total := int64(d.Seconds())
	days := total / 86400
	total %= 86400
	hours := total / 3600
	total %= 3600
	minutes := total / 60
	seconds := total % 60

	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
