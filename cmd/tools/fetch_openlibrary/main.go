// Command fetch_openlibrary builds a seed file from Open Library subjects.
// Each subject becomes a section and its most popular works its books.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"libraryhub/internal/slugs"
	"libraryhub/internal/validation"
	"libraryhub/pkg/database"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultBase = "https://openlibrary.org"

type subjectResp struct {
	Name  string `json:"name"`
	Works []struct {
		Title   string `json:"title"`
		Authors []struct {
			Name string `json:"name"`
		} `json:"authors"`
		FirstPublishYear int `json:"first_publish_year"`
	} `json:"works"`
}

func fetchSubject(ctx context.Context, client *http.Client, base, subject string, limit int) (subjectResp, error) {
	var out subjectResp
	u := fmt.Sprintf("%s/subjects/%s.json?limit=%d", strings.TrimSuffix(base, "/"), url.PathEscape(subject), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, err
	}
	if resp.StatusCode >= 300 {
		return out, fmt.Errorf("open library %s: http status %s", subject, resp.Status)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", subject, err)
	}
	return out, nil
}

// toSection keeps the works that pass the same validation the API applies
// and whose slug has not been used by an earlier section.
func toSection(s subjectResp, seen map[string]bool) database.SeedSection {
	title := strings.ToUpper(s.Name[:1]) + s.Name[1:]
	sec := database.SeedSection{
		Title:       title,
		Description: fmt.Sprintf("Popular %s titles from Open Library.", strings.ToLower(s.Name)),
		Books:       []database.SeedBook{},
	}
	for _, w := range s.Works {
		author := "Unknown Author"
		if len(w.Authors) > 0 && strings.TrimSpace(w.Authors[0].Name) != "" {
			author = strings.TrimSpace(w.Authors[0].Name)
		}
		desc := fmt.Sprintf("A %s work by %s.", strings.ToLower(s.Name), author)
		if w.FirstPublishYear > 0 {
			desc = fmt.Sprintf("A %s work by %s, first published in %d.", strings.ToLower(s.Name), author, w.FirstPublishYear)
		}
		b := database.SeedBook{Title: strings.TrimSpace(w.Title), Author: author, Description: desc}

		if validation.Struct(validation.Book{Title: b.Title, Author: b.Author, Description: b.Description}) != nil {
			continue
		}
		slug := slugs.Make(b.Title)
		if seen[slug] {
			continue
		}
		seen[slug] = true
		sec.Books = append(sec.Books, b)
	}
	return sec
}

func main() {
	outPath := flag.String("out", "data/seed.json", "output json path")
	subjects := flag.String("subjects", "fantasy,science_fiction,poetry,mystery,romance", "comma-separated Open Library subjects")
	n := flag.Int("n", 12, "works per subject")
	base := flag.String("base", defaultBase, "Open Library base URL")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client := &http.Client{Timeout: 20 * time.Second}

	seen := map[string]bool{}
	var out []database.SeedSection
	for _, subject := range strings.Split(*subjects, ",") {
		subject = strings.TrimSpace(subject)
		if subject == "" {
			continue
		}
		resp, err := fetchSubject(ctx, client, *base, subject, *n)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if resp.Name == "" {
			resp.Name = strings.ReplaceAll(subject, "_", " ")
		}
		sec := toSection(resp, seen)
		fmt.Printf("%-20s %d books\n", sec.Title, len(sec.Books))
		out = append(out, sec)
	}

	// đảm bảo folder tồn tại
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	j, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, j, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d sections -> %s\n", len(out), *outPath)
}
