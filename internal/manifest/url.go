package manifest

import (
	"net/url"
	"strconv"
	"strings"
)

// timeToken is the literal DASH placeholder substituted per-segment. Other
// placeholders ($Number$, $RepresentationID$, width specifiers) are out of
// scope (spec §9 Design Notes) and are left untouched if present.
const timeToken = "$Time$"

// ResolveURL resolves a template (relative or absolute) against the
// manifest's base URL (everything before the last "/" of the original
// fetch URL, per spec §3).
func ResolveURL(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}

// BuildInitURL resolves a Representation's init-segment URL. It carries no
// placeholders (spec §3).
func BuildInitURL(baseURL string, rep Representation) string {
	if rep.SegmentTemplate == nil {
		return ""
	}
	return ResolveURL(baseURL, rep.SegmentTemplate.Initialization)
}

// BuildMediaURL substitutes the literal $Time$ token in a Representation's
// media template with t, then resolves the result against baseURL. The
// substitution is a plain string replace, never a format directive (spec
// §9 Design Notes).
func BuildMediaURL(baseURL string, rep Representation, t uint64) string {
	if rep.SegmentTemplate == nil {
		return ""
	}
	media := strings.ReplaceAll(rep.SegmentTemplate.Media, timeToken, strconv.FormatUint(t, 10))
	return ResolveURL(baseURL, media)
}
