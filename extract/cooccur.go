package extract

import (
	"sort"
	"strings"

	"github.com/Fasthei/charmine/core"
)

// Default window sizes in characters.
const (
	// DefaultCoOccurWindow is the substring length within which two names
	// must both appear to be considered related.
	DefaultCoOccurWindow = 100
	// DefaultKeywordWindow is the substring length within which a
	// relationship keyword must appear together with one of the names.
	DefaultKeywordWindow = 50
)

// Keyword lists are ordered: the first keyword satisfying the window
// condition wins and scanning stops.
var (
	// StrongKeywords indicate direct, explicitly stated relationships.
	StrongKeywords = []string{
		"acquainted", "relative", "friend", "married", "brother",
		"sister", "parent", "child", "classmate", "confidant",
	}

	// WeakKeywords indicate indirect relationships.
	WeakKeywords = []string{
		"colleague", "coworker", "partner", "collaborator",
		"associate", "peer", "contact",
	}
)

const (
	strongConfidence = 0.8
	weakConfidence   = 0.6
)

// Options configure an Extractor.
type Options struct {
	CoOccurWindow  int
	KeywordWindow  int
	StrongKeywords []string
	WeakKeywords   []string
}

// Extractor is the deterministic co-occurrence relationship classifier.
// For every ordered pair of distinct candidate names it tests windowed
// co-occurrence, then classifies the pair by the first strong (or,
// failing that, weak) keyword found near either name. Both orderings of a
// pair are evaluated independently and may both emit a record.
type Extractor struct {
	opts Options
}

// NewExtractor constructs an Extractor with default windows and keyword
// lists.
func NewExtractor(optFns ...func(o *Options)) *Extractor {
	opts := Options{
		CoOccurWindow:  DefaultCoOccurWindow,
		KeywordWindow:  DefaultKeywordWindow,
		StrongKeywords: StrongKeywords,
		WeakKeywords:   WeakKeywords,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Extractor{opts: opts}
}

// Extract emits one relationship record per matching ordered pair of
// names. Names are distinct by position: a duplicated name in the input
// list is paired against its other occurrences too.
func (e *Extractor) Extract(names []string, text string) []core.Relationship {
	if text == "" {
		return nil
	}

	occ := make([][]int, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		occ[i] = indexAll(text, name)
	}

	var rels []core.Relationship

	for i, p1 := range names {
		for j, p2 := range names {
			if i == j || p1 == "" || p2 == "" {
				continue
			}

			if !withinWindow(occ[i], len(p1), occ[j], len(p2), e.opts.CoOccurWindow) {
				continue
			}

			if kw, ok := e.firstNearbyKeyword(e.opts.StrongKeywords, text, occ[i], len(p1), occ[j], len(p2)); ok {
				rels = append(rels, core.Relationship{
					Source:      p1,
					Target:      p2,
					Type:        core.RelationStrong,
					Description: kw + " relation",
					Confidence:  strongConfidence,
				})
				continue
			}

			if kw, ok := e.firstNearbyKeyword(e.opts.WeakKeywords, text, occ[i], len(p1), occ[j], len(p2)); ok {
				rels = append(rels, core.Relationship{
					Source:      p1,
					Target:      p2,
					Type:        core.RelationWeak,
					Description: kw + " relation",
					Confidence:  weakConfidence,
				})
			}
		}
	}

	return rels
}

// CoOccur reports whether some contiguous substring of length window
// contains both names. The predicate is symmetric in the two names.
func (e *Extractor) CoOccur(a, b, text string) bool {
	if text == "" || a == "" || b == "" {
		return false
	}
	return withinWindow(indexAll(text, a), len(a), indexAll(text, b), len(b), e.opts.CoOccurWindow)
}

// firstNearbyKeyword scans the ordered keyword list and returns the first
// keyword that appears in some window of KeywordWindow characters
// together with either name.
func (e *Extractor) firstNearbyKeyword(keywords []string, text string, occ1 []int, len1 int, occ2 []int, len2 int) (string, bool) {
	for _, kw := range keywords {
		kwOcc := indexAll(text, kw)
		if len(kwOcc) == 0 {
			continue
		}

		if withinWindow(kwOcc, len(kw), occ1, len1, e.opts.KeywordWindow) ||
			withinWindow(kwOcc, len(kw), occ2, len2, e.opts.KeywordWindow) {
			return kw, true
		}
	}

	return "", false
}

// indexAll returns the start offsets of every (possibly overlapping)
// occurrence of sub in text.
func indexAll(text, sub string) []int {
	if sub == "" {
		return nil
	}

	var idx []int
	for from := 0; ; {
		i := strings.Index(text[from:], sub)
		if i < 0 {
			return idx
		}
		idx = append(idx, from+i)
		from += i + 1
	}
}

// withinWindow reports whether an occurrence of the first substring and
// an occurrence of the second fit inside one window of length w, i.e.
// max(endA, endB) - min(startA, startB) <= w. Equivalent to sliding a
// w-length window over the text and testing containment of both, without
// the quadratic scan.
func withinWindow(occA []int, lenA int, occB []int, lenB int, w int) bool {
	if len(occA) == 0 || len(occB) == 0 {
		return false
	}

	for _, a := range occA {
		// Earliest b whose shared window with a could still fit:
		// b < a needs a+lenA-b <= w.
		lo := sort.SearchInts(occB, a+lenA-w)
		for _, b := range occB[lo:] {
			if b >= a && b+lenB-a > w {
				break // span only grows from here
			}
			if max(a+lenA, b+lenB)-min(a, b) <= w {
				return true
			}
		}
	}

	return false
}
