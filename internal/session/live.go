package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/qwer-lives/instarec/internal/manifest"
	"github.com/qwer-lives/instarec/internal/segment"
)

// LiveWorkerConfig carries the tuning values the live poller/downloader
// need (spec §4.7, §6).
type LiveWorkerConfig struct {
	PollInterval   time.Duration
	LiveEndTimeout time.Duration
}

// RunLivePoll polls the manifest every PollInterval, enqueuing unseen
// timestamps >= StreamInfo.InitialT onto s.LiveQueue, and emits the
// end-of-stream sentinel when either the end-of-broadcast header appears
// or no new timestamp has appeared for LiveEndTimeout (spec §4.7).
//
// The inactivity clock starts at worker startup and is reset on every new
// timestamp — it is never left unset. This follows spec §4.7's explicit
// text over a particular original_source/instarec/live.py revision, which
// only begins checking the timeout after at least one live segment has
// ever appeared (see SPEC_FULL.md §4 and DESIGN.md for the full
// discussion).
func RunLivePoll(ctx context.Context, s *Session, fetchAndParse func(ctx context.Context, url string) (*manifest.MPD, bool, error), cfg LiveWorkerConfig, log zerolog.Logger) {
	queued := make(map[uint64]struct{})
	lastNewSegmentTime := time.Now()

	// limiter paces manifest refetches to PollInterval apart, the same
	// token-bucket idiom internal/session/past.go uses for PastSegmentDelay
	// instead of a separate hand-rolled ticker abstraction.
	limiter := rate.NewLimiter(rate.Every(cfg.PollInterval), 1)

	emitEnd := func() {
		select {
		case s.LiveQueue <- LiveItem{IsEnd: true}:
		case <-ctx.Done():
		}
	}

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		root, isEnded, err := fetchAndParse(ctx, s.BaseURLManifest())
		if isEnded {
			log.Info().Msg("broadcast ended (end-of-broadcast header); stopping live poller")
			emitEnd()
			return
		}
		if err != nil || root == nil {
			log.Warn().Err(err).Msg("failed to fetch or parse live manifest, continuing")
			continue
		}

		foundNew := false
		for _, period := range root.Periods {
			for _, set := range period.Sets {
				tmpl := set.SegmentTemplate
				for _, rep := range set.Representations {
					if rep.ID == s.StreamInfo.Video.ID && rep.SegmentTemplate != nil {
						tmpl = rep.SegmentTemplate
					}
				}
				if tmpl == nil {
					continue
				}
				for _, seg := range tmpl.Timeline.Segments {
					if seg.T < s.StreamInfo.InitialT {
						continue
					}
					if _, seen := queued[seg.T]; seen {
						continue
					}
					queued[seg.T] = struct{}{}
					foundNew = true
					select {
					case s.LiveQueue <- LiveItem{T: seg.T}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		if foundNew {
			lastNewSegmentTime = time.Now()
			continue
		}

		if time.Since(lastNewSegmentTime) > cfg.LiveEndTimeout {
			log.Info().Dur("since_last_segment", time.Since(lastNewSegmentTime)).Msg("no new live segments within timeout, stopping live poller")
			emitEnd()
			return
		}
	}
}

// BaseURLManifest returns the manifest URL the live poller re-fetches on
// every tick, as stored by SetManifestURL; RunLivePoll passes it to its
// fetchAndParse function.
func (s *Session) BaseURLManifest() string { return s.manifestURL }

// SetManifestURL stores the manifest URL the live poller re-fetches.
func (s *Session) SetManifestURL(url string) { s.manifestURL = url }

// RunLiveDownload dequeues timestamps from s.LiveQueue and appends segment
// pairs until it sees the end sentinel (spec §4.7). It never retries at
// this layer beyond what the HTTP client already does.
func RunLiveDownload(ctx context.Context, s *Session, fetcher *segment.Fetcher, log zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-s.LiveQueue:
			if !ok || item.IsEnd {
				return nil
			}

			s.RecordAttempt()
			success, err := fetcher.DownloadPair(ctx, item.T, s.Store.VideoLive, s.Store.AudioLive)
			if err != nil {
				return err
			}
			if success {
				log.Debug().Uint64("t", item.T).Msg("live segment recorded")
			} else {
				s.RecordMiss(item.T)
			}
		}
	}
}
