// Package render turns markdown post bodies into plain text or normalised markdown.
package render

import (
	"bytes"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Post bodies may embed raw HTML, so it is passed through rather than dropped.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// HTML renders a markdown body.
func HTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PlainText returns the visible text of a markdown body with line breaks removed.
func PlainText(body string) (string, error) {
	h, err := HTML(body)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(h))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	text := strings.NewReplacer("\r", "", "\n", "").Replace(doc.Text())
	return strings.TrimSpace(text), nil
}

// Excerpt returns the first n characters of body's plain text followed by
// "...". It returns "" when the body has no text.
func Excerpt(body string, n int) string {
	text, err := PlainText(body)
	if err != nil || text == "" {
		return ""
	}
	if r := []rune(text); len(r) > n {
		text = string(r[:n])
	}
	return text + "..."
}

// Markdown rewrites any HTML embedded in a markdown body as markdown. The body
// is returned unchanged if it cannot be converted.
func Markdown(body string) string {
	h, err := HTML(body)
	if err != nil {
		return body
	}
	out, err := htmltomarkdown.ConvertString(h)
	if err != nil {
		return body
	}
	return strings.TrimSpace(out)
}
