// Package slugs derives the URL-safe identifiers used as primary keys.
package slugs

import (
	"strings"

	"github.com/gosimple/slug"
)

// Separator joins a book slug and a username into a composite key.
const Separator = "~"

var stripper = strings.NewReplacer("'", "", ",", "", ".", "", "!", "", "?", "")

// Make lowercases text, drops apostrophes and sentence punctuation, and
// hyphen-joins the remaining words: "Harry's Book, Vol. 2!" -> "harrys-book-vol-2".
func Make(text string) string {
	return slug.Make(stripper.Replace(strings.TrimSpace(text)))
}

// Pair builds the composite slug shared by a user's request, issuance and
// feedback for one book.
func Pair(bookSlug, username string) string {
	return bookSlug + Separator + username
}
