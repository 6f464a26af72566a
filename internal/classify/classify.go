// Package classify decides whether a rendered page is a not-found or error page.
//
// The decision is a string heuristic over the page text. The HTTP status code
// is never seen by the renderer, so real articles mentioning "Error" are
// misclassified and custom not-found pages without any signature pass as
// valid. Both are accepted.
package classify

import "strings"

// Verdict is the classification result.
type Verdict int

const (
	Valid Verdict = iota
	NotFound
)

func (v Verdict) String() string {
	if v == NotFound {
		return "not_found"
	}
	return "valid"
}

// Signals is the text collected from a rendered page.
type Signals struct {
	Title      string
	Headings   []string
	Paragraphs []string
	Blocks     []string
}

// Classifier matches Signals against a fixed signature set.
type Classifier struct {
	signatures []string
}

// New returns a Classifier for the given signatures. Matching is case-sensitive.
func New(signatures []string) *Classifier {
	sigs := make([]string, 0, len(signatures))
	for _, s := range signatures {
		if s != "" {
			sigs = append(sigs, s)
		}
	}
	return &Classifier{signatures: sigs}
}

// Classify returns NotFound if any signal contains any signature.
func (c *Classifier) Classify(s Signals) Verdict {
	if c.matches(s.Title) {
		return NotFound
	}
	for _, group := range [][]string{s.Headings, s.Paragraphs, s.Blocks} {
		for _, text := range group {
			if c.matches(text) {
				return NotFound
			}
		}
	}
	return Valid
}

// Match returns the first signature found in text, if any.
func (c *Classifier) Match(text string) (string, bool) {
	for _, sig := range c.signatures {
		if strings.Contains(text, sig) {
			return sig, true
		}
	}
	return "", false
}

func (c *Classifier) matches(text string) bool {
	if text == "" {
		return false
	}
	_, ok := c.Match(text)
	return ok
}
