package manifest

const (
	MimeVideo = "video/mp4"
	MimeAudio = "audio/mp4"
)

// StreamInfo is the selected video/audio representation pair plus the
// bounds that separate the past backlog from the live tail (spec §3).
type StreamInfo struct {
	Video Representation
	Audio Representation
	// InitialT is the largest t in the first fetched manifest: the
	// exclusive upper bound of the backlog (the past worker stops strictly
	// before it) and the inclusive lower bound of the live tail.
	InitialT uint64
	// PublishFrameTime is the producer-side hint for where the past
	// window begins, when the manifest declares one.
	PublishFrameTime *int64
}

// ParseInitialInfo selects the video and audio representations, reads
// their SegmentTemplate, and locates the last S entry of the video
// timeline to derive InitialT (spec §4.2).
func ParseInitialInfo(root *MPD, preferredVideo, preferredAudio []string) (StreamInfo, error) {
	video, ok := SelectRepresentation(root, MimeVideo, preferredVideo)
	if !ok {
		return StreamInfo{}, ErrEmptyManifest
	}
	audio, ok := SelectRepresentation(root, MimeAudio, preferredAudio)
	if !ok {
		return StreamInfo{}, ErrEmptyManifest
	}
	if video.SegmentTemplate == nil || len(video.SegmentTemplate.Timeline.Segments) == 0 {
		return StreamInfo{}, ErrEmptyManifest
	}

	last := video.SegmentTemplate.Timeline.Segments[len(video.SegmentTemplate.Timeline.Segments)-1]

	return StreamInfo{
		Video:            video,
		Audio:            audio,
		InitialT:         last.T,
		PublishFrameTime: root.PublishFrameTime,
	}, nil
}
