package session_test

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwer-lives/instarec/internal/backlog"
	"github.com/qwer-lives/instarec/internal/httpclient"
	"github.com/qwer-lives/instarec/internal/manifest"
	"github.com/qwer-lives/instarec/internal/probe"
	"github.com/qwer-lives/instarec/internal/segment"
	"github.com/qwer-lives/instarec/internal/session"
	"github.com/qwer-lives/instarec/internal/store"
)

// sequenceProbe stands in for ffprobe: on each successive invocation it
// reports the next value of a fixed, test-supplied sequence of
// duration_ts values, tracked via a counter file sitting next to the
// script. This lets a test steer NextExpectedT's return values directly,
// independent of what's actually been written to the file it's pointed
// at.
func sequenceProbe(t *testing.T, values ...string) *probe.Prober {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake shell binaries require a POSIX shell")
	}
	dir := t.TempDir()
	counterFile := filepath.Join(dir, "counter")
	require.NoError(t, os.WriteFile(counterFile, []byte("0"), 0o644))

	valuesFile := filepath.Join(dir, "values")
	require.NoError(t, os.WriteFile(valuesFile, []byte(joinLines(values)), 0o644))

	path := filepath.Join(dir, "fake-ffprobe")
	script := fmt.Sprintf(`#!/bin/sh
counter=$(cat %q)
value=$(sed -n "$((counter + 1))p" %q)
echo $((counter + 1)) > %q
if [ -z "$value" ]; then
  echo '{}'
  exit 1
fi
printf '{"streams":[{"duration_ts":"%%s"}]}' "$value"
`, counterFile, valuesFile, counterFile)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return probe.New(path)
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

type pastFetchClient struct {
	bodies map[string][]byte
	fail   map[string]bool
}

func (c pastFetchClient) FetchBody(ctx context.Context, url string) ([]byte, http.Header, error) {
	if c.fail[url] {
		return nil, nil, fmt.Errorf("fetch failed: %s", url)
	}
	return c.bodies[url], nil, nil
}

type fixedHeadProber struct{ exists map[uint64]bool }

func (p fixedHeadProber) HeadStatus(ctx context.Context, url string) httpclient.HeadResult {
	var t uint64
	fmt.Sscanf(url, "http://cdn/v/%d.m4s", &t)
	if p.exists[t] {
		return httpclient.HeadExists
	}
	return httpclient.HeadAbsent
}

func pastStreamInfo(initialT uint64) manifest.StreamInfo {
	return manifest.StreamInfo{
		Video:    manifest.Representation{SegmentTemplate: &manifest.SegmentTemplate{Media: "v/$Time$.m4s"}},
		Audio:    manifest.Representation{SegmentTemplate: &manifest.SegmentTemplate{Media: "a/$Time$.m4s"}},
		InitialT: initialT,
	}
}

func TestRunPast_ProbeAdvancesThroughContiguousSegments(t *testing.T) {
	publishFrameTime := int64(0)
	info := pastStreamInfo(300)
	info.PublishFrameTime = &publishFrameTime

	st, err := store.New(filepath.Join(t.TempDir(), "out.mkv"))
	require.NoError(t, err)
	s := session.New("http://cdn/", info, st, 8)

	// The fake probe reports 100, 200, 300 in turn: the worker walks
	// t=0 -> 100 -> 200, then stops once the probe reports 300 (InitialT).
	client := pastFetchClient{bodies: map[string][]byte{
		"http://cdn/v/0.m4s":   make([]byte, 100),
		"http://cdn/a/0.m4s":   []byte("a"),
		"http://cdn/v/100.m4s": make([]byte, 100),
		"http://cdn/a/100.m4s": []byte("a"),
		"http://cdn/v/200.m4s": make([]byte, 100),
		"http://cdn/a/200.m4s": []byte("a"),
	}}
	fetcher := &segment.Fetcher{Client: client, BaseURL: "http://cdn/", Info: info}
	disc := &backlog.Discoverer{Client: fixedHeadProber{}, BuildURL: func(t uint64) string { return fmt.Sprintf("http://cdn/v/%d.m4s", t) }}
	pr := sequenceProbe(t, "100", "200", "300")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = session.RunPast(ctx, s, fetcher, disc, pr, session.PastWorkerConfig{PastSegmentDelay: time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.TotalExpectedSegments)
	assert.Empty(t, snap.MissingSegments)
	require.NotNil(t, snap.FirstSegmentT)
	assert.EqualValues(t, 0, *snap.FirstSegmentT)
}

func TestRunPast_MissTriggersForwardSearch(t *testing.T) {
	publishFrameTime := int64(0)
	info := pastStreamInfo(300)
	info.PublishFrameTime = &publishFrameTime

	st, err := store.New(filepath.Join(t.TempDir(), "out.mkv"))
	require.NoError(t, err)
	s := session.New("http://cdn/", info, st, 8)

	// t=0's audio is missing, so the pair fails; the worker must search
	// forward from t=1 and find t=150, then finish once the probe reports
	// duration_ts 300.
	client := pastFetchClient{
		bodies: map[string][]byte{
			"http://cdn/v/0.m4s":   make([]byte, 100),
			"http://cdn/v/150.m4s": make([]byte, 150),
			"http://cdn/a/150.m4s": []byte("a"),
		},
		fail: map[string]bool{"http://cdn/a/0.m4s": true},
	}
	fetcher := &segment.Fetcher{Client: client, BaseURL: "http://cdn/", Info: info}
	disc := &backlog.Discoverer{
		Client:                 fixedHeadProber{exists: map[uint64]bool{150: true}},
		BuildURL:               func(t uint64) string { return fmt.Sprintf("http://cdn/v/%d.m4s", t) },
		MaxSearchRequests:      4,
		SearchChunkSize:        8,
		EndStreamMissThreshold: 300,
	}
	// Probe is only ever called once, after the t=150 success.
	pr := sequenceProbe(t, "300")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = session.RunPast(ctx, s, fetcher, disc, pr, session.PastWorkerConfig{PastSegmentDelay: time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.TotalExpectedSegments)
	assert.Equal(t, []uint64{0}, snap.MissingSegments)
	require.NotNil(t, snap.FirstSegmentT)
	assert.EqualValues(t, 150, *snap.FirstSegmentT)
}
