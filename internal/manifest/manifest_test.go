package manifest_test

import (
	"context"
	"encoding/xml"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwer-lives/instarec/internal/manifest"
)

const sampleMPD = `<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="dynamic" publishFrameTime="100">
  <Period>
    <AdaptationSet mimeType="video/mp4">
      <Representation id="v1" bandwidth="5000000">
        <SegmentTemplate initialization="v1/init.mp4" media="v1/$Time$.m4s">
          <SegmentTimeline>
            <S t="100" d="50"/>
            <S t="150" d="50"/>
            <S t="200" d="50"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
      <Representation id="v2" bandwidth="1000000">
        <SegmentTemplate initialization="v2/init.mp4" media="v2/$Time$.m4s">
          <SegmentTimeline>
            <S t="100" d="50"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
    <AdaptationSet mimeType="audio/mp4">
      <Representation id="a1" bandwidth="128000">
        <SegmentTemplate initialization="a1/init.mp4" media="a1/$Time$.m4s">
          <SegmentTimeline>
            <S t="100" d="50"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

type stubClient struct {
	body    []byte
	headers http.Header
	err     error
}

func (s stubClient) FetchBody(ctx context.Context, url string) ([]byte, http.Header, error) {
	return s.body, s.headers, s.err
}

func TestFetchAndParse_EndOfBroadcastHeader(t *testing.T) {
	h := http.Header{}
	h.Set("x-fb-video-broadcast-ended", "1")
	c := stubClient{body: []byte(sampleMPD), headers: h}

	root, isEnded, err := manifest.FetchAndParse(context.Background(), c, "http://example.com/m.mpd")
	require.NoError(t, err)
	assert.True(t, isEnded)
	require.NotNil(t, root)
}

func TestFetchAndParse_MalformedBodyNotFatal(t *testing.T) {
	h := http.Header{}
	h.Set("x-fb-video-broadcast-ended", "1")
	c := stubClient{body: []byte("<not valid xml"), headers: h}

	root, isEnded, err := manifest.FetchAndParse(context.Background(), c, "http://example.com/m.mpd")
	require.NoError(t, err)
	assert.True(t, isEnded)
	assert.Nil(t, root)
}

func TestSelectRepresentation_PreferredIDWins(t *testing.T) {
	var root manifest.MPD
	require.NoError(t, unmarshal(sampleMPD, &root))

	rep, ok := manifest.SelectRepresentation(&root, manifest.MimeVideo, []string{"v2"})
	require.True(t, ok)
	assert.Equal(t, "v2", rep.ID)
}

func TestSelectRepresentation_DefaultsToMaxBandwidth(t *testing.T) {
	var root manifest.MPD
	require.NoError(t, unmarshal(sampleMPD, &root))

	rep, ok := manifest.SelectRepresentation(&root, manifest.MimeVideo, nil)
	require.True(t, ok)
	assert.Equal(t, "v1", rep.ID)
}

func TestParseInitialInfo_InitialTIsLastTimelineEntry(t *testing.T) {
	var root manifest.MPD
	require.NoError(t, unmarshal(sampleMPD, &root))

	info, err := manifest.ParseInitialInfo(&root, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 200, info.InitialT)
	require.NotNil(t, info.PublishFrameTime)
	assert.EqualValues(t, 100, *info.PublishFrameTime)
}

func TestParseInitialInfo_EmptyManifestFails(t *testing.T) {
	var root manifest.MPD
	root.Periods = []manifest.Period{{
		Sets: []manifest.AdaptationSet{
			{
				MimeType: manifest.MimeVideo,
				Representations: []manifest.Representation{
					{ID: "v1", SegmentTemplate: &manifest.SegmentTemplate{Media: "v1/$Time$.m4s"}},
				},
			},
			{
				MimeType: manifest.MimeAudio,
				Representations: []manifest.Representation{
					{ID: "a1", SegmentTemplate: &manifest.SegmentTemplate{Media: "a1/$Time$.m4s"}},
				},
			},
		},
	}}

	_, err := manifest.ParseInitialInfo(&root, nil, nil)
	assert.ErrorIs(t, err, manifest.ErrEmptyManifest)
}

func TestBuildMediaURL_SubstitutesTimeLiterally(t *testing.T) {
	rep := manifest.Representation{
		SegmentTemplate: &manifest.SegmentTemplate{Media: "seg/$Time$.m4s"},
	}
	got := manifest.BuildMediaURL("http://cdn.example.com/stream/", rep, 12345)
	assert.Equal(t, "http://cdn.example.com/stream/seg/12345.m4s", got)
}

func unmarshal(s string, root *manifest.MPD) error {
	return xml.Unmarshal([]byte(s), root)
}
