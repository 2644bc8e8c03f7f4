// Package archive renders a year-grouped archive page for a collection.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leonardcser/writeas-mcp/internal/render"
	"github.com/leonardcser/writeas-mcp/internal/writeas"
)

const (
	untitled      = "Untitled Post"
	excerptLength = 50
)

// Page renders posts as an archive page.
type Page struct {
	// PostURL returns the link for a post.
	PostURL func(p writeas.Post) string
	// Now fixes the year of the first heading; time.Now when nil.
	Now func() time.Time
}

// Write renders posts in the given order. A new year heading starts whenever a
// post's creation year differs from the current heading, which begins at the
// current year.
func (a Page) Write(w io.Writer, posts []writeas.Post) error {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	var sb strings.Builder
	year := strconv.Itoa(now().Year())
	sb.WriteString("<div class=\"archivePage\">\n")
	writeYear(&sb, year)

	for _, p := range posts {
		if y := strconv.Itoa(p.Created.Year()); y != year {
			sb.WriteString("\n")
			year = y
			writeYear(&sb, year)
		}
		fmt.Fprintf(&sb, "<div><a href=\"%s\" target=\"_blank\"><span class=\"archivePageDateSpan\">%s:</span> %s</a></div>\n",
			a.PostURL(p), p.Created.Format(time.DateOnly), Title(p))
	}
	sb.WriteString("</div>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteFile renders posts into dir/name, creating dir if needed. ".txt" is
// appended to name unless it already has that extension. It returns the path written.
func (a Page) WriteFile(dir, name string, posts []writeas.Post) (string, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".txt") {
		name += ".txt"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := a.Write(f, posts); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

// Title returns the post title, or an excerpt of the body for untitled posts.
// '#' is escaped so the page does not create hashtags.
func Title(p writeas.Post) string {
	title := p.Title
	if title == "" {
		title = render.Excerpt(p.Body, excerptLength)
		if title == "" {
			title = untitled
		}
	}
	return strings.ReplaceAll(title, "#", "&#35;")
}

func writeYear(sb *strings.Builder, year string) {
	sb.WriteString("<h1>" + year + "</h1>\n")
	sb.WriteString("<hr class=\"archivePageHr\"/>\n")
}
