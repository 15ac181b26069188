package extraction

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Admissibility window, in points, relative to the field's lower-left corner
const (
	minDX = -10.0
	maxDX = 400.0
	minDY = -30.0
	maxDY = 50.0
)

var (
	punctuationOnly = regexp.MustCompile(`^[.\s:]+$`)

	// date-part words that sit next to date boxes without naming the field
	dateParts = map[string]bool{
		"jour":  true,
		"mois":  true,
		"année": true,
		"an":    true,
		"day":   true,
		"month": true,
		"year":  true,
	}
)

// IsMeaningfulLabel reports whether a text run can serve as a field label.
// Dot leaders, punctuation, very short fragments and bare date parts are rejected.
func IsMeaningfulLabel(text string) bool {
	if punctuationOnly.MatchString(text) {
		return false
	}
	if strings.HasPrefix(text, "...") {
		return false
	}
	if utf8.RuneCountInString(text) < 3 {
		return false
	}
	return !dateParts[strings.ToLower(text)]
}

// NearestLabel returns the content of the meaningful run closest to the
// field's lower-left corner among runs roughly left of or above it. Ties keep
// the run seen first. ok is false when no run is admissible.
func NearestLabel(runs []TextRun, fieldX, fieldY float64) (label string, ok bool) {
	best := math.Inf(1)
	for _, run := range runs {
		if !IsMeaningfulLabel(run.Content) {
			continue
		}

		dx := fieldX - run.X
		dy := fieldY - run.Y
		if dx <= minDX || dx >= maxDX || dy <= minDY || dy >= maxDY {
			continue
		}

		if d := math.Sqrt(dx*dx + dy*dy); d < best {
			best = d
			label = run.Content
			ok = true
		}
	}
	return label, ok
}
