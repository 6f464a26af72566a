package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/groundchat/internal/classify"
	"github.com/mohammad-safakhou/groundchat/models"
)

// Parse extracts classifier signals and paragraph content from a rendered document.
// Paragraph text is kept in document order and capped at maxChars runes in total;
// maxChars <= 0 disables the cap.
func Parse(html, pageURL string, maxChars int) (classify.Signals, models.ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return classify.Signals{}, models.ExtractedContent{}, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()

	signals := classify.Signals{
		Title:      clean(doc.Find("title").First().Text()),
		Headings:   texts(doc.Find("h1, h2, h3")),
		Paragraphs: texts(doc.Find("p")),
		Blocks:     texts(doc.Find("div")),
	}
	if signals.Title == "" {
		signals.Title = readableTitle(html, pageURL)
	}

	content := models.ExtractedContent{Paragraphs: capParagraphs(signals.Paragraphs, maxChars)}
	return signals, content, nil
}

func readableTitle(html, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return ""
	}
	return clean(article.Title)
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := clean(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capParagraphs(paragraphs []string, maxChars int) []string {
	if maxChars <= 0 {
		return paragraphs
	}
	out := make([]string, 0, len(paragraphs))
	budget := maxChars
	for _, p := range paragraphs {
		r := []rune(p)
		if len(r) > budget {
			if budget > 0 {
				out = append(out, string(r[:budget]))
			}
			break
		}
		out = append(out, p)
		budget -= len(r)
	}
	return out
}
