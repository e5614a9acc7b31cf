package segment

import "strings"

// Segment classifies the visibility of a lead's position feed.
type Segment string

const (
	Visible Segment = "VISIBLE"
	Hidden  Segment = "HIDDEN"
	Unknown Segment = "UNKNOWN"
)

// Filter selects which segments a query wants back.
type Filter string

const (
	FilterBoth    Filter = "both"
	FilterVisible Filter = "visible"
	FilterHidden  Filter = "hidden"
)

// Resolve maps the exchange's positionShow flag to a segment. A nil
// flag means the exchange never told us, which is its own segment, not
// a guess either way.
func Resolve(positionShow *bool) Segment {
	if positionShow == nil {
		return Unknown
	}
	if *positionShow {
		return Visible
	}
	return Hidden
}

// ShouldInclude reports whether a segment passes the filter. FilterBoth
// covers VISIBLE and HIDDEN but not UNKNOWN: leads whose visibility we
// cannot determine stay out of aggregate views.
func ShouldInclude(seg Segment, f Filter) bool {
	switch f {
	case FilterVisible:
		return seg == Visible
	case FilterHidden:
		return seg == Hidden
	case FilterBoth:
		return seg == Visible || seg == Hidden
	default:
		return false
	}
}

// ParseFilter normalizes a query-string value; anything unrecognized
// falls back to FilterBoth.
func ParseFilter(raw string) Filter {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "visible":
		return FilterVisible
	case "hidden":
		return FilterHidden
	default:
		return FilterBoth
	}
}
