// Package engine is the supervisor: it wires the manifest fetch, segment
// store, session workers, and finaliser together, owns the top-level
// cancellation, and guarantees the finaliser runs on every exit path once
// the session is set up (spec §5, §9).
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/qwer-lives/instarec/internal/backlog"
	"github.com/qwer-lives/instarec/internal/config"
	"github.com/qwer-lives/instarec/internal/httpclient"
	"github.com/qwer-lives/instarec/internal/logging"
	"github.com/qwer-lives/instarec/internal/manifest"
	"github.com/qwer-lives/instarec/internal/mux"
	"github.com/qwer-lives/instarec/internal/probe"
	"github.com/qwer-lives/instarec/internal/segment"
	"github.com/qwer-lives/instarec/internal/session"
	"github.com/qwer-lives/instarec/internal/store"
	"github.com/qwer-lives/instarec/internal/summary"
)

// Run brings up every worker for one recording and blocks until the run
// is complete (the live poller detected end-of-broadcast, or ctx was
// cancelled). Once the session is set up, the finaliser and summary writer
// always run, even on worker error or cancellation. A failure before that
// point (building the HTTP client, fetching or parsing the first manifest,
// creating the staging store, fetching or seeding the init segments)
// returns without running them. The deferred finaliser mirrors
// original_source/instarec/downloader.py's run() wrapping its whole
// worker gather in a try/finally that calls _finalize_video()
// unconditionally (see DESIGN.md).
func Run(ctx context.Context, cfg config.Config) (err error) {
	log := logging.WithComponent("engine")

	client, buildErr := httpclient.New(cfg.UserAgent, cfg.DownloadRetries, cfg.DownloadRetryDelay, cfg.CheckURLRetries, cfg.ProxyURL)
	if buildErr != nil {
		return fmt.Errorf("engine: build http client: %w", buildErr)
	}

	baseURL := manifest.ResolveURL(cfg.MPDURL, ".")

	root, _, fetchErr := fetchAndParse(ctx, client, cfg.MPDURL)
	if fetchErr != nil {
		return fmt.Errorf("engine: fetch initial manifest: %w", fetchErr)
	}
	if root == nil {
		return fmt.Errorf("engine: %w", manifest.ErrEmptyManifest)
	}

	info, infoErr := manifest.ParseInitialInfo(root, cfg.PreferredVideoIDs, cfg.PreferredAudioIDs)
	if infoErr != nil {
		return fmt.Errorf("engine: %w", infoErr)
	}

	st, storeErr := store.New(cfg.OutputPath)
	if storeErr != nil {
		return fmt.Errorf("engine: create segment store: %w", storeErr)
	}

	if initErr := downloadInitSegments(ctx, client, baseURL, info, st); initErr != nil {
		return fmt.Errorf("engine: %w", initErr)
	}
	if cfg.NoPast {
		// Without the past worker nothing else seeds the past files, and the
		// finaliser's concatenation needs the init bytes at its head.
		if seedErr := st.SeedPastFromInit(); seedErr != nil {
			return fmt.Errorf("engine: seed past files: %w", seedErr)
		}
	}

	sess := session.New(baseURL, info, st, 1024)
	sess.SetManifestURL(cfg.MPDURL)

	pr := probe.New(cfg.FFprobePath)

	// The finaliser and summary writer run even if the workers below
	// return an error or ctx is cancelled (spec §4.9, §7).
	defer func() {
		// A cancelled ctx must not prevent the finaliser/summary writer
		// from running (spec §5 Cancellation): they get a fresh,
		// independent context rather than the (possibly already done) run
		// context.
		finalizeErr := finalizeAndSummarize(context.Background(), cfg, sess, st, pr, log)
		if err == nil {
			err = finalizeErr
		}
	}()

	fetcher := &segment.Fetcher{Client: client, BaseURL: baseURL, Info: info}

	g, gctx := errgroup.WithContext(ctx)

	if !cfg.NoPast {
		g.Go(func() error {
			disc := videoDiscoverer(client, baseURL, info, cfg)
			return session.RunPast(gctx, sess, fetcher, disc, pr, session.PastWorkerConfig{
				PastSegmentDelay: cfg.PastSegmentDelay,
			}, logging.WithComponent("past"))
		})
	}

	g.Go(func() error {
		session.RunLivePoll(gctx, sess, func(ctx context.Context, url string) (*manifest.MPD, bool, error) {
			return fetchAndParse(ctx, client, url)
		}, session.LiveWorkerConfig{
			PollInterval:   cfg.PollInterval,
			LiveEndTimeout: cfg.LiveEndTimeout,
		}, logging.WithComponent("live-poll"))
		return nil
	})

	g.Go(func() error {
		return session.RunLiveDownload(gctx, sess, fetcher, logging.WithComponent("live-download"))
	})

	return g.Wait()
}

func fetchAndParse(ctx context.Context, client *httpclient.Client, url string) (*manifest.MPD, bool, error) {
	return manifest.FetchAndParse(ctx, client, url)
}

func downloadInitSegments(ctx context.Context, client *httpclient.Client, baseURL string, info manifest.StreamInfo, st *store.Store) error {
	videoInitURL := manifest.BuildInitURL(baseURL, info.Video)
	audioInitURL := manifest.BuildInitURL(baseURL, info.Audio)

	videoData, _, err := client.FetchBody(ctx, videoInitURL)
	if err != nil || len(videoData) == 0 {
		return fmt.Errorf("fetch video init segment: %w", err)
	}
	audioData, _, err := client.FetchBody(ctx, audioInitURL)
	if err != nil || len(audioData) == 0 {
		return fmt.Errorf("fetch audio init segment: %w", err)
	}

	if err := st.VideoInit.Append(videoData); err != nil {
		return err
	}
	if err := st.AudioInit.Append(audioData); err != nil {
		return err
	}
	return nil
}

func videoDiscoverer(client *httpclient.Client, baseURL string, info manifest.StreamInfo, cfg config.Config) *backlog.Discoverer {
	return &backlog.Discoverer{
		Client: client,
		BuildURL: func(t uint64) string {
			return manifest.BuildMediaURL(baseURL, info.Video, t)
		},
		MaxSearchRequests:      cfg.MaxSearchRequests,
		SearchChunkSize:        cfg.SearchChunkSize,
		EndStreamMissThreshold: cfg.EndStreamMissThreshold,
	}
}

func finalizeAndSummarize(ctx context.Context, cfg config.Config, sess *session.Session, st *store.Store, pr *probe.Prober, log zerolog.Logger) error {
	if err := mux.Finalize(st, cfg.FFmpegPath, cfg.OutputPath, cfg.KeepSegments, logging.WithComponent("mux")); err != nil {
		log.Error().Err(err).Msg("finaliser failed")
	}

	snap := sess.Snapshot()
	report := summary.Build(ctx, cfg.OutputPath, snap, pr)

	if cfg.SummaryFile != "" {
		if err := summary.WriteEnglish(cfg.SummaryFile, report); err != nil {
			log.Error().Err(err).Msg("failed to write English summary")
		}
	}
	if cfg.SummaryFileKorean != "" {
		if err := summary.WriteKorean(cfg.SummaryFileKorean, report); err != nil {
			log.Error().Err(err).Msg("failed to write Korean summary")
		}
	}
	return nil
}
