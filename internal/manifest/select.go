package manifest

// AllRepresentations returns every Representation across every
// AdaptationSet whose mimeType equals mime, carrying forward each
// Representation's inherited SegmentTemplate and MimeType when the
// Representation element itself didn't declare its own (a common manifest
// shorthand: the template and mimeType live on the AdaptationSet).
func AllRepresentations(root *MPD, mime string) []Representation {
	var out []Representation
	for _, period := range root.Periods {
		for _, set := range period.Sets {
			if set.MimeType != "" && set.MimeType != mime {
				continue
			}
			for _, rep := range set.Representations {
				if rep.MimeType == "" {
					rep.MimeType = set.MimeType
				}
				if rep.MimeType != mime {
					continue
				}
				if rep.SegmentTemplate == nil {
					rep.SegmentTemplate = set.SegmentTemplate
				}
				out = append(out, rep)
			}
		}
	}
	return out
}

// SelectRepresentation picks one Representation whose mimeType matches
// mime (spec §4.2). If preferredIDs is non-empty, it is walked in order and
// the first ID present in the manifest wins, regardless of where it falls
// in document order. Otherwise the representation with the numerically
// largest bandwidth is chosen, ties broken by document order (the first
// one encountered).
func SelectRepresentation(root *MPD, mime string, preferredIDs []string) (Representation, bool) {
	candidates := AllRepresentations(root, mime)
	if len(candidates) == 0 {
		return Representation{}, false
	}

	for _, id := range preferredIDs {
		for _, rep := range candidates {
			if rep.ID == id {
				return rep, true
			}
		}
	}

	best := candidates[0]
	for _, rep := range candidates[1:] {
		if rep.Bandwidth > best.Bandwidth {
			best = rep
		}
	}
	return best, true
}
