package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subjectJSON = `{
  "name": "science fiction",
  "works": [
    {"title": "Dune", "authors": [{"name": "Frank Herbert"}], "first_publish_year": 1965},
    {"title": "Foundation", "authors": [], "first_publish_year": 0},
    {"title": "X", "authors": [{"name": "Too Short"}]},
    {"title": "Emma", "authors": [{"name": "Jane Austen"}], "first_publish_year": 1815}
  ]
}`

func Test_FetchSubject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subjects/science_fiction.json" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "4", r.URL.Query().Get("limit"))
		w.Write([]byte(subjectJSON))
	}))
	defer srv.Close()

	resp, err := fetchSubject(context.Background(), srv.Client(), srv.URL, "science_fiction", 4)
	require.NoError(t, err)
	assert.Equal(t, "science fiction", resp.Name)
	assert.Len(t, resp.Works, 4)

	_, err = fetchSubject(context.Background(), srv.Client(), srv.URL, "nope", 4)
	assert.ErrorContains(t, err, "404")
}

func Test_ToSection(t *testing.T) {
	var resp subjectResp
	require.NoError(t, json.Unmarshal([]byte(subjectJSON), &resp))

	seen := map[string]bool{"emma": true}
	sec := toSection(resp, seen)

	assert.Equal(t, "Science fiction", sec.Title)
	require.Len(t, sec.Books, 2, "short titles and already seen slugs are skipped")
	assert.Equal(t, "Dune", sec.Books[0].Title)
	assert.Equal(t, "A science fiction work by Frank Herbert, first published in 1965.", sec.Books[0].Description)
	assert.Equal(t, "Unknown Author", sec.Books[1].Author)
	assert.True(t, seen["dune"])
}
