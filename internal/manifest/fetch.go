package manifest

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
)

// ErrEmptyManifest is returned when the initial manifest carries no S
// elements to derive initialT from (spec §4.2, §7).
var ErrEmptyManifest = errors.New("manifest: no segment timeline entries")

// endOfBroadcastHeader is the non-standard response header a live manifest
// fetch carries once the broadcast has ended (spec glossary).
const endOfBroadcastHeader = "x-fb-video-broadcast-ended"

// HTTPClient is the manifest package's view of internal/httpclient.Client.
type HTTPClient interface {
	FetchBody(ctx context.Context, url string) ([]byte, http.Header, error)
}

// FetchAndParse fetches the manifest body and parses it. It reports
// whether the response carried the end-of-broadcast header regardless of
// whether parsing succeeded: end-of-stream responses are sometimes
// malformed, and callers (the live poller) must not treat a parse failure
// as fatal (spec §4.2, §7 ManifestUnparseable).
func FetchAndParse(ctx context.Context, c HTTPClient, url string) (*MPD, bool, error) {
	body, headers, err := c.FetchBody(ctx, url)
	isEnded := headers.Get(endOfBroadcastHeader) != ""
	if err != nil {
		return nil, isEnded, err
	}

	var root MPD
	if xmlErr := xml.Unmarshal(body, &root); xmlErr != nil {
		return nil, isEnded, nil
	}
	return &root, isEnded, nil
}
