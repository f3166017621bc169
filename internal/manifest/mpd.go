// Package manifest fetches and decodes DASH manifests: representation
// selection, init/media URL templates, and the publishFrameTime/initialT
// hints the rest of the engine is built around (spec §3, §4.2).
package manifest

import "encoding/xml"

// MPD is the root of a DASH manifest. publishFrameTime is a non-standard,
// producer-supplied root attribute (spec glossary).
type MPD struct {
	XMLName          xml.Name `xml:"MPD"`
	Type             string   `xml:"type,attr"`
	PublishFrameTime *int64   `xml:"publishFrameTime,attr"`
	Periods          []Period `xml:"Period"`
}

type Period struct {
	ID      string          `xml:"id,attr"`
	BaseURL string          `xml:"BaseURL"`
	Sets    []AdaptationSet `xml:"AdaptationSet"`
}

type AdaptationSet struct {
	ID              string           `xml:"id,attr"`
	MimeType        string           `xml:"mimeType,attr"`
	Representations []Representation `xml:"Representation"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
}

// Representation is one encoded variant of a video or audio stream (spec
// §3). MimeType is read either from the Representation element itself or
// inherited from its enclosing AdaptationSet during selection.
type Representation struct {
	ID                string `xml:"id,attr"`
	MimeType          string `xml:"mimeType,attr"`
	Bandwidth         int64  `xml:"bandwidth,attr"`
	Codecs            string `xml:"codecs,attr"`
	Width             int    `xml:"width,attr"`
	Height            int    `xml:"height,attr"`
	FrameRate         string `xml:"frameRate,attr"`
	AudioSamplingRate int    `xml:"audioSamplingRate,attr"`

	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
}

type SegmentTemplate struct {
	Timescale      uint64          `xml:"timescale,attr"`
	Initialization string          `xml:"initialization,attr"`
	Media          string          `xml:"media,attr"`
	Timeline       SegmentTimeline `xml:"SegmentTimeline"`
}

type SegmentTimeline struct {
	Segments []S `xml:"S"`
}

// S is one SegmentTimeline entry: @t is the segment's start timestamp.
type S struct {
	T uint64 `xml:"t,attr"`
	D uint64 `xml:"d,attr"`
	R int    `xml:"r,attr"`
}
