// Package archive persists enrichment summaries as a side-effect sink.
// Nothing reads the archive back; a failed write is logged by the caller
// and never affects the analysis result.
package archive

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/gitscape/pkg/enrich"
)

// Record is one archived analysis run.
type Record struct {
	Key        string           `json:"key" bson:"_id"`
	Repository string           `json:"repository" bson:"repository"`
	Author     string           `json:"author" bson:"author"`
	CreatedAt  time.Time        `json:"created_at" bson:"created_at"`
	Summaries  []enrich.Summary `json:"summaries" bson:"summaries"`
}

// Store persists analysis records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Key derives the stable archive key for a repository and its primary
// author. Path separators and spaces are flattened so the key is safe as a
// filename and as a document id.
func Key(repository, author string) string {
	return sanitize(repository) + "_" + sanitize(author)
}

// NewRecord assembles a record for the given run, keyed per [Key].
func NewRecord(repository, author string, summaries []enrich.Summary) Record {
	if author == "" {
		author = "Unknown"
	}
	return Record{
		Key:        Key(repository, author),
		Repository: repository,
		Author:     author,
		CreatedAt:  time.Now().UTC(),
		Summaries:  summaries,
	}
}

// PrimaryAuthor returns the most frequent author in the summaries, ties
// broken by whoever reaches the maximum count first in slice order. Empty
// input yields "Unknown".
func PrimaryAuthor(summaries []enrich.Summary) string {
	counts := make(map[string]int)
	best, bestCount := "Unknown", 0
	for _, s := range summaries {
		author := s.Author
		if author == "" {
			author = "Unknown"
		}
		counts[author]++
		if counts[author] > bestCount {
			best, bestCount = author, counts[author]
		}
	}
	return best
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '-'
		}
		return r
	}, s)
}
