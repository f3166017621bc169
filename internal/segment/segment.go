// Package segment fetches one video+audio pair at a timestamp and appends
// it to the segment store atomically (spec §4.8).
package segment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/qwer-lives/instarec/internal/manifest"
	"github.com/qwer-lives/instarec/internal/store"
)

// HTTPClient is the narrow view of internal/httpclient.Client the fetcher
// needs.
type HTTPClient interface {
	FetchBody(ctx context.Context, url string) ([]byte, http.Header, error)
}

// Fetcher downloads video/audio segment pairs against a fixed base URL and
// representation pair.
type Fetcher struct {
	Client  HTTPClient
	BaseURL string
	Info    manifest.StreamInfo
}

// DownloadPair builds both segment URLs by literal $Time$ substitution,
// fetches them concurrently, and appends both to the given files if and
// only if both fetches succeed (spec §4.8). Returning false means neither
// file was appended; the caller owns the timestamp's fate from there.
func (f *Fetcher) DownloadPair(ctx context.Context, t uint64, videoFile, audioFile *store.AppendFile) (bool, error) {
	videoURL := manifest.BuildMediaURL(f.BaseURL, f.Info.Video, t)
	audioURL := manifest.BuildMediaURL(f.BaseURL, f.Info.Audio, t)

	type fetchResult struct {
		data []byte
		err  error
	}
	videoCh := make(chan fetchResult, 1)
	audioCh := make(chan fetchResult, 1)

	go func() {
		data, _, err := f.Client.FetchBody(ctx, videoURL)
		videoCh <- fetchResult{data, err}
	}()
	go func() {
		data, _, err := f.Client.FetchBody(ctx, audioURL)
		audioCh <- fetchResult{data, err}
	}()

	videoRes := <-videoCh
	audioRes := <-audioCh

	if videoRes.err != nil || audioRes.err != nil {
		return false, nil
	}
	if len(videoRes.data) == 0 || len(audioRes.data) == 0 {
		return false, nil
	}

	if err := videoFile.Append(videoRes.data); err != nil {
		return false, fmt.Errorf("segment: append video t=%d: %w", t, err)
	}
	if err := audioFile.Append(audioRes.data); err != nil {
		return false, fmt.Errorf("segment: append audio t=%d: %w", t, err)
	}
	return true, nil
}
