// Package sanitize removes markup from user supplied text before it is
// stored.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// Text strips every tag, comment and doctype from s and keeps the text
// content exactly as written. Entities are neither decoded nor encoded.
//
// Stripping can expose a new tag ("<<b>i>" becomes "<i>"), so Text repeats
// until nothing changes. A pass keeps only raw text bytes, so any pass that
// changes s makes it shorter and the loop ends. Text(Text(s)) == Text(s).
func Text(s string) string {
	for {
		next := strip(s)
		if next == s {
			return s
		}
		s = next
	}
}

func strip(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	b.Grow(len(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF for a string reader; a tag cut off by EOF is dropped
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}
