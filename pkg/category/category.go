package category

import (
	"fmt"
	"net/http"
	"strings"
)

// Category is the coarse resource type of a response
type Category string

const (
	Fetch   Category = "fetch"
	Image   Category = "image"
	JS      Category = "js"
	CSS     Category = "css"
	HTML    Category = "html"
	Unknown Category = "unknown"

	// All is only meaningful as a filter value
	All Category = "all"
)

// rule matches a category by content-type fragment or URL suffix
type rule struct {
	category     Category
	contentTypes []string
	suffixes     []string
}

// rules are evaluated in order, first match wins. The order decides which
// category a response gets when it satisfies several rules (a text/css
// response served from a .html URL is css).
var rules = []rule{
	{JS, []string{"application/javascript"}, []string{".js"}},
	{CSS, []string{"text/css"}, []string{".css"}},
	{Image, []string{"image"}, []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif"}},
	{HTML, []string{"text/html"}, []string{".html", ".htm"}},
	{Fetch, []string{"application/json"}, []string{".json"}},
	{Fetch, []string{"text/plain"}, []string{".txt"}},
}

// Classify returns the category for a response content-type and URL
func Classify(contentType, rawURL string) Category {
	for _, r := range rules {
		if r.matches(contentType, rawURL) {
			return r.category
		}
	}
	return Unknown
}

// FromResponse classifies an http.Response using its Content-Type header and
// the URL of the request that produced it
func FromResponse(resp *http.Response) Category {
	if resp == nil {
		return Unknown
	}
	rawURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		rawURL = resp.Request.URL.String()
	}
	return Classify(resp.Header.Get("Content-Type"), rawURL)
}

func (r rule) matches(contentType, rawURL string) bool {
	for _, ct := range r.contentTypes {
		if contentType != "" && strings.Contains(contentType, ct) {
			return true
		}
	}
	for _, suffix := range r.suffixes {
		if strings.HasSuffix(rawURL, suffix) {
			return true
		}
	}
	return false
}

// Parse converts a category name to a Category
func Parse(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Fetch, Image, JS, CSS, HTML, Unknown:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category: %q", s)
	}
}

// ParseFilter is Parse plus the "all" filter value. An empty string means all.
func ParseFilter(s string) (Category, error) {
	if strings.TrimSpace(s) == "" || strings.EqualFold(strings.TrimSpace(s), string(All)) {
		return All, nil
	}
	return Parse(s)
}

// Matches reports whether a filter admits the category
func (c Category) Matches(other Category) bool {
	return c == All || c == "" || c == other
}

// String returns the category name
func (c Category) String() string {
	return string(c)
}
