package session_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwer-lives/instarec/internal/manifest"
	"github.com/qwer-lives/instarec/internal/segment"
	"github.com/qwer-lives/instarec/internal/session"
)

func timelineMPD(ts ...uint64) *manifest.MPD {
	segs := make([]manifest.S, len(ts))
	for i, t := range ts {
		segs[i] = manifest.S{T: t}
	}
	return &manifest.MPD{
		Periods: []manifest.Period{{
			Sets: []manifest.AdaptationSet{{
				SegmentTemplate: &manifest.SegmentTemplate{Timeline: manifest.SegmentTimeline{Segments: segs}},
			}},
		}},
	}
}

func TestRunLivePoll_EnqueuesUnseenTimestampsAboveInitialT(t *testing.T) {
	s := newTestSession(t, 1000)

	var poll int32
	fetch := func(ctx context.Context, url string) (*manifest.MPD, bool, error) {
		n := atomic.AddInt32(&poll, 1)
		switch n {
		case 1:
			return timelineMPD(900, 1000, 1100), false, nil // 900 is below InitialT, skipped
		case 2:
			return timelineMPD(900, 1000, 1100, 1200), false, nil
		default:
			return nil, true, nil // end-of-broadcast
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		session.RunLivePoll(ctx, s, fetch, session.LiveWorkerConfig{
			PollInterval:   time.Millisecond,
			LiveEndTimeout: time.Hour,
		}, zerolog.Nop())
		close(done)
	}()

	var got []uint64
	for {
		select {
		case item := <-s.LiveQueue:
			if item.IsEnd {
				goto drained
			}
			got = append(got, item.T)
		case <-ctx.Done():
			t.Fatal("timed out waiting for live queue items")
		}
	}
drained:
	<-done
	assert.Equal(t, []uint64{1000, 1100, 1200}, got)
}

func TestRunLivePoll_InactivityTimeoutEmitsEnd(t *testing.T) {
	s := newTestSession(t, 1000)

	fetch := func(ctx context.Context, url string) (*manifest.MPD, bool, error) {
		return timelineMPD(), false, nil // never anything new
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		session.RunLivePoll(ctx, s, fetch, session.LiveWorkerConfig{
			PollInterval:   time.Millisecond,
			LiveEndTimeout: 20 * time.Millisecond,
		}, zerolog.Nop())
		close(done)
	}()

	select {
	case item := <-s.LiveQueue:
		assert.True(t, item.IsEnd)
	case <-ctx.Done():
		t.Fatal("expected end sentinel before context deadline")
	}
	<-done
}

type queueFetcherClient struct {
	bodies map[string][]byte
}

func (c queueFetcherClient) FetchBody(ctx context.Context, url string) ([]byte, http.Header, error) {
	return c.bodies[url], nil, nil
}

func TestRunLiveDownload_StopsOnEndSentinelAndRecordsMisses(t *testing.T) {
	s := newTestSession(t, 1000)

	info := manifest.StreamInfo{
		Video: manifest.Representation{SegmentTemplate: &manifest.SegmentTemplate{Media: "v/$Time$.m4s"}},
		Audio: manifest.Representation{SegmentTemplate: &manifest.SegmentTemplate{Media: "a/$Time$.m4s"}},
	}
	client := queueFetcherClient{bodies: map[string][]byte{
		"http://cdn/v/1000.m4s": []byte("v"),
		"http://cdn/a/1000.m4s": []byte("a"),
		// 1100's audio is deliberately missing -> pair fails -> miss recorded
		"http://cdn/v/1100.m4s": []byte("v"),
	}}
	fetcher := &segment.Fetcher{Client: client, BaseURL: "http://cdn/", Info: info}

	s.LiveQueue <- session.LiveItem{T: 1000}
	s.LiveQueue <- session.LiveItem{T: 1100}
	s.LiveQueue <- session.LiveItem{IsEnd: true}

	err := session.RunLiveDownload(context.Background(), s, fetcher, zerolog.Nop())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.TotalExpectedSegments)
	assert.Equal(t, []uint64{1100}, snap.MissingSegments)
}
