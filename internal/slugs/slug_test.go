package slugs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Harry Potter", "harry-potter"},
		{"  The Hobbit  ", "the-hobbit"},
		{"Harry's Book, Vol. 2!", "harrys-book-vol-2"},
		{"What If?", "what-if"},
		{"Science Fiction", "science-fiction"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestPair(t *testing.T) {
	assert.Equal(t, "the-hobbit~bilbo_b", Pair("the-hobbit", "bilbo_b"))
}

func TestMakeEmptyForPunctuation(t *testing.T) {
	for _, in := range []string{"...", "---", "?!?"} {
		assert.Empty(t, Make(in), in)
	}
}
