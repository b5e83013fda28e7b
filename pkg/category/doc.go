// Package category classifies HTTP responses into coarse resource types.
//
// Classification looks at the Content-Type header and the URL suffix, one
// category at a time in a fixed priority order (js, css, image, html, json,
// plain text). The first category whose content-type fragment or suffix
// matches wins; json and plain text both map to Fetch.
//
//	cat := category.Classify("text/css", "https://example.com/site.html")
//	// cat == category.CSS
package category
