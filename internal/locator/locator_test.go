package locator

import (
	"strings"
	"testing"
)

func TestExtractWithoutURL(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"What is the capital of France?",
		"   padded question   ",
		"",
		"ftp://example.com is not supported",
		"mention of http without a link",
	}
	for _, in := range inputs {
		res := Extract(in)
		if res.Found {
			t.Fatalf("Extract(%q) found identity %q, want none", in, res.Identity)
		}
		if want := strings.TrimSpace(in); res.Remainder != want {
			t.Fatalf("Extract(%q) remainder = %q, want %q", in, res.Remainder, want)
		}
	}
}

func TestExtractSingleURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		in        string
		identity  string
		remainder string
	}{
		{
			name:      "question around url",
			in:        "What does https://example.com/missing say? ",
			identity:  "https://example.com/missing",
			remainder: "What does say?",
		},
		{
			name:      "url at the end",
			in:        "Summarize https://example.com/about",
			identity:  "https://example.com/about",
			remainder: "Summarize",
		},
		{
			name:      "trailing punctuation is not part of the identity",
			in:        "Read https://Example.com/post/1.",
			identity:  "https://example.com/post/1",
			remainder: "Read",
		},
		{
			name:      "tracking params and fragment are dropped",
			in:        "check http://news.example.com:80/a?utm_source=x&id=3#top please",
			identity:  "http://news.example.com/a?id=3",
			remainder: "check please",
		},
		{
			name:      "only url",
			in:        "https://example.com",
			identity:  "https://example.com/",
			remainder: "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Extract(tt.in)
			if !res.Found {
				t.Fatalf("expected identity for %q", tt.in)
			}
			if res.Identity != tt.identity {
				t.Fatalf("identity = %q, want %q", res.Identity, tt.identity)
			}
			if res.Remainder != tt.remainder {
				t.Fatalf("remainder = %q, want %q", res.Remainder, tt.remainder)
			}
			if urlPattern.MatchString(res.Remainder) {
				t.Fatalf("remainder %q still contains a url", res.Remainder)
			}
		})
	}
}

func TestExtractUsesFirstURLOnly(t *testing.T) {
	t.Parallel()
	res := Extract("compare https://a.example.com/x with https://b.example.com/y")
	if res.Identity != "https://a.example.com/x" {
		t.Fatalf("expected first url, got %q", res.Identity)
	}
	if res.Remainder != "compare with" {
		t.Fatalf("unexpected remainder %q", res.Remainder)
	}
}

func TestExtractSkipsMalformedToken(t *testing.T) {
	t.Parallel()
	res := Extract("broken https://?? then https://ok.example.com/page")
	if !res.Found || res.Identity != "https://ok.example.com/page" {
		t.Fatalf("expected second token to be used, got %+v", res)
	}
	if res.Remainder != "broken then" {
		t.Fatalf("unexpected remainder %q", res.Remainder)
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM", "https://example.com/"},
		{"https://example.com:443/a/../b", "https://example.com/b"},
		{"https://example.com:8443//a//b/", "https://example.com:8443/a/b/"},
		{"https://example.com/p?b=2&a=1&fbclid=z&utm_medium=mail", "https://example.com/p?a=1&b=2"},
		{"http://user:pw@example.com/x", "http://example.com/x"},
	}
	for _, tt := range tests {
		got, err := Canonical(tt.in)
		if err != nil {
			t.Fatalf("Canonical(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalErrors(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "mailto:a@example.com", "https://", "example.com/path", "ftp://example.com"} {
		if _, err := Canonical(in); err == nil {
			t.Fatalf("Canonical(%q) expected error", in)
		}
	}
}
