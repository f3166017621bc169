package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/qwer-lives/instarec/internal/backlog"
	"github.com/qwer-lives/instarec/internal/probe"
	"github.com/qwer-lives/instarec/internal/segment"
)

// PastWorkerConfig carries the tuning values the past worker needs (spec
// §4.6, §6).
type PastWorkerConfig struct {
	PastSegmentDelay time.Duration
}

// RunPast walks forward from the earliest discoverable timestamp to
// StreamInfo.InitialT, downloading each segment pair (spec §4.6). It
// returns nil even when no backlog could be found at all — per spec §4.6
// step 2, that is logged and the run continues without the past portion,
// not treated as a fatal error.
func RunPast(ctx context.Context, s *Session, fetcher *segment.Fetcher, disc *backlog.Discoverer, pr *probe.Prober, cfg PastWorkerConfig, log zerolog.Logger) error {
	if err := s.Store.SeedPastFromInit(); err != nil {
		return err
	}

	t, ok := startingT(ctx, s, disc, log)
	if !ok {
		log.Info().Msg("no past backlog start point found; skipping past download")
		return nil
	}

	// limiter throttles loop iterations to at least PastSegmentDelay apart
	// (spec §4.6 step 3e), a burst-of-one token bucket refilling at that
	// rate instead of a hand-rolled elapsed/sleep-remainder calculation.
	limiter := rate.NewLimiter(rate.Every(cfg.PastSegmentDelay), 1)

	for t < s.StreamInfo.InitialT {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		s.RecordAttempt()

		ok, err := fetcher.DownloadPair(ctx, t, s.Store.VideoPast, s.Store.AudioPast)
		if err != nil {
			return err
		}

		var next uint64
		var nextOK bool
		if ok {
			s.RecordSuccess(t)
			if err := s.Store.VideoPast.Flush(); err != nil {
				return err
			}
			next, nextOK = pr.NextExpectedT(ctx, s.Store.VideoPast.Path())
		} else {
			s.RecordMiss(t)
		}

		if ok && nextOK {
			t = next
		} else {
			searchFrom := t + 1
			found, foundOK := disc.FindFirstExisting(ctx, searchFrom)
			if !foundOK {
				log.Debug().Uint64("from", searchFrom).Msg("past backlog search exhausted, stopping past worker")
				return nil
			}
			t = found
		}
	}
	return nil
}

// startingT implements spec §4.6 step 2: prefer publishFrameTime when the
// manifest declared one, else search forward from zero. This call is
// deliberately not preceded by a validating HEAD on publishFrameTime
// itself (spec §9 Design Notes / Open Question) — the producer may publish
// the hint slightly ahead of the CDN, so the first loop iteration is left
// to discover that the normal way, via a failed download and a forward
// search from t+1.
func startingT(ctx context.Context, s *Session, disc *backlog.Discoverer, log zerolog.Logger) (uint64, bool) {
	if s.StreamInfo.PublishFrameTime != nil && *s.StreamInfo.PublishFrameTime >= 0 {
		return uint64(*s.StreamInfo.PublishFrameTime), true
	}
	return disc.FindFirstExisting(ctx, 0)
}
