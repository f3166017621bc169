// Package backlog implements the bounded-parallel HEAD-probe search that
// finds the next timestamp that actually exists inside a sparse integer
// range (spec §4.5).
package backlog

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/qwer-lives/instarec/internal/httpclient"
)

// HeadProber is the narrow view of internal/httpclient.Client the
// discoverer needs.
type HeadProber interface {
	HeadStatus(ctx context.Context, url string) httpclient.HeadResult
}

// Discoverer searches a single media template (one mimeType) for the
// smallest existing timestamp.
type Discoverer struct {
	Client HeadProber
	// BuildURL returns the HEAD URL for timestamp t.
	BuildURL func(t uint64) string

	MaxSearchRequests      int
	SearchChunkSize        int
	EndStreamMissThreshold int
}

// FindFirstExisting searches forward from startT for the smallest t such
// that a HEAD at BuildURL(t) returns 200, bounded by
// EndStreamMissThreshold and executed in chunks of SearchChunkSize with up
// to MaxSearchRequests concurrent probes (spec §4.5).
//
// Probes complete out of order; within a chunk the smallest successful
// timestamp wins, and the whole chunk is awaited before the next chunk
// starts so that guarantee holds regardless of completion order. A hit does
// not cancel the other probes of its chunk: every probe of the chunk runs
// to completion before the results are read. Cancelling ctx cancels all
// in-flight probes, and they are drained before returning, so no
// background HEAD requests leak past the call (spec §4.5, §5 Cancellation).
func (d *Discoverer) FindFirstExisting(ctx context.Context, startT uint64) (uint64, bool) {
	sem := semaphore.NewWeighted(int64(d.MaxSearchRequests))

	for chunkStart := startT; chunkStart < startT+uint64(d.EndStreamMissThreshold); chunkStart += uint64(d.SearchChunkSize) {
		chunkEnd := chunkStart + uint64(d.SearchChunkSize)
		if limit := startT + uint64(d.EndStreamMissThreshold); chunkEnd > limit {
			chunkEnd = limit
		}

		found, t := d.searchChunk(ctx, sem, chunkStart, chunkEnd)
		if found {
			return t, true
		}
		select {
		case <-ctx.Done():
			return 0, false
		default:
		}
	}
	return 0, false
}

// searchChunk probes every t in [start, end) with bounded concurrency and
// returns the smallest t that exists, waiting for the whole chunk to
// finish (or be cancelled) before returning.
func (d *Discoverer) searchChunk(ctx context.Context, sem *semaphore.Weighted, start, end uint64) (bool, uint64) {
	chunkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(chunkCtx)

	results := make([]httpclient.HeadResult, end-start)

	for t := start; t < end; t++ {
		t := t
		idx := t - start
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[idx] = d.Client.HeadStatus(gctx, d.BuildURL(t))
			return nil
		})
	}

	_ = g.Wait()

	for i, r := range results {
		if r == httpclient.HeadExists {
			return true, start + uint64(i)
		}
	}
	return false, 0
}
