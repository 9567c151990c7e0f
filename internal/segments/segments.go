// Package segments models timed speech segments and the filler filter applied
// to them before trimming.
package segments

import (
	"strings"
	"unicode"
)

// Segment is a contiguous span of detected speech, in seconds from the start of the source.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

var defaultFillers = []string{"um", "uh", "eh", "so", "like", "you know"}

// DefaultFillers returns the built-in filler vocabulary.
func DefaultFillers() []string {
	return append([]string(nil), defaultFillers...)
}

// FillerSet is a normalized filler vocabulary. Entries may span several words.
type FillerSet struct {
	phrases [][]string
}

// NewFillerSet normalizes words into a filler set. Blank entries are ignored.
func NewFillerSet(words []string) FillerSet {
	set := FillerSet{}
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		var tokens []string
		for _, token := range tokenize(word) {
			if token != "" {
				tokens = append(tokens, token)
			}
		}
		if len(tokens) == 0 {
			continue
		}
		key := strings.Join(tokens, " ")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		set.phrases = append(set.phrases, tokens)
	}
	return set
}

// Len reports how many phrases the set holds.
func (f FillerSet) Len() int {
	return len(f.phrases)
}

// Covers reports whether text consists solely of filler phrases.
// Blank text is covered. A token that is nothing but punctuation or symbols,
// such as "..." or "♪", is never a filler.
func (f FillerSet) Covers(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	tokens := tokenize(text)
	if len(f.phrases) == 0 {
		return false
	}
	// reachable[i] is true when tokens[:i] can be split into filler phrases.
	reachable := make([]bool, len(tokens)+1)
	reachable[0] = true
	for i := 0; i < len(tokens); i++ {
		if !reachable[i] {
			continue
		}
		for _, phrase := range f.phrases {
			if matchesAt(tokens, i, phrase) {
				reachable[i+len(phrase)] = true
			}
		}
	}
	return reachable[len(tokens)]
}

func matchesAt(tokens []string, at int, phrase []string) bool {
	if at+len(phrase) > len(tokens) {
		return false
	}
	for j, word := range phrase {
		if tokens[at+j] != word {
			return false
		}
	}
	return true
}

// Filter drops segments whose text is empty or made up only of fillers. It
// preserves order, never adds segments, and is idempotent.
func Filter(in []Segment, fillers FillerSet) []Segment {
	out := make([]Segment, 0, len(in))
	for _, seg := range in {
		if fillers.Covers(seg.Text) {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// tokenize lower-cases text and strips surrounding punctuation from each
// whitespace-delimited field. Fields with nothing else left become "".
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	for i, field := range fields {
		fields[i] = strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
	}
	return fields
}
