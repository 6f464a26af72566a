// Package locator finds the resource a chat message refers to.
package locator

import (
	"regexp"
	"strings"
)

var (
	urlPattern    = regexp.MustCompile(`(?i)https?://\S+`)
	spaceRun      = regexp.MustCompile(`[ \t]{2,}`)
	trailingPunct = ".,;:!?)]}'\""
)

// Result is the outcome of scanning one message.
type Result struct {
	// Identity is the canonical URL of the first well-formed link, empty when Found is false.
	Identity string
	// Raw is the token Identity was derived from.
	Raw   string
	Found bool
	// Remainder is the message with every URL token removed and trimmed.
	Remainder string
}

// Extract returns at most one resource identity from text. Only the first
// well-formed absolute http(s) URL is used; later URLs are stripped from the
// remainder but otherwise ignored.
func Extract(text string) Result {
	tokens := urlPattern.FindAllString(text, -1)
	if len(tokens) == 0 {
		return Result{Remainder: strings.TrimSpace(text)}
	}

	var res Result
	for _, tok := range tokens {
		candidate := strings.TrimRight(tok, trailingPunct)
		identity, err := Canonical(candidate)
		if err != nil {
			continue
		}
		res.Identity = identity
		res.Raw = candidate
		res.Found = true
		break
	}

	stripped := urlPattern.ReplaceAllString(text, "")
	stripped = spaceRun.ReplaceAllString(stripped, " ")
	res.Remainder = strings.TrimSpace(stripped)
	return res
}
