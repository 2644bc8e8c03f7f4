package writeas

import (
	"sort"
	"strings"
	"time"
)

const (
	// PageSize is the number of posts the API returns per collection page.
	PageSize = 10
	// MaxPages bounds how many pages one aggregation requests, whatever total
	// the server reports.
	MaxPages = 1000
)

// Post is one published article. Posts are treated as immutable values.
type Post struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	Appearance string    `json:"appearance"`
	Language   string    `json:"language"`
	RTL        bool      `json:"rtl"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Tags       []string  `json:"tags"`
	Views      int       `json:"views"`
}

// CollectionPage is one page of an alias's posts as returned by the API.
type CollectionPage struct {
	Alias       string `json:"alias"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StyleSheet  string `json:"style_sheet"`
	Private     bool   `json:"private"`
	TotalPosts  int    `json:"total_posts"`
	Posts       []Post `json:"posts"`
}

// SortOrder selects how post lists are ordered.
type SortOrder int

const (
	// Descending keeps the API's newest-first order.
	Descending SortOrder = iota
	// Ascending orders posts by creation time, oldest first.
	Ascending
)

// ParseSortOrder maps "ascending" (any case) to Ascending; anything else is Descending.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), "ascending") {
		return Ascending
	}
	return Descending
}

func (o SortOrder) String() string {
	if o == Ascending {
		return "Ascending"
	}
	return "Descending"
}

// sortPosts returns posts in the requested order. Descending returns the input
// untouched; Ascending returns a sorted copy.
func sortPosts(order SortOrder, posts []Post) []Post {
	if order != Ascending {
		return posts
	}
	sorted := make([]Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Created.Before(sorted[j].Created)
	})
	return sorted
}

// totalPages is ceil(totalPosts / PageSize).
func totalPages(totalPosts int) int {
	if totalPosts <= 0 {
		return 0
	}
	pages := totalPosts / PageSize
	if totalPosts%PageSize != 0 {
		pages++
	}
	return pages
}

// matches reports whether key occurs in the post's title or body, ignoring case.
func matches(p Post, key string) bool {
	key = strings.ToLower(key)
	if p.Title != "" && strings.Contains(strings.ToLower(p.Title), key) {
		return true
	}
	return strings.Contains(strings.ToLower(p.Body), key)
}

// DisplayTitle returns the title, or "Untitled Post" when it is empty.
func (p Post) DisplayTitle() string {
	if p.Title == "" {
		return "Untitled Post"
	}
	return p.Title
}
