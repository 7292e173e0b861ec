package memory

import (
	"sort"
	"strings"
	"time"
)

// DefaultRecencyWeight is the share of the combined score contributed by
// recency when ranking episodic records.
const DefaultRecencyWeight = 0.3

// recencyHalfLifeDays controls the decay curve: a record's recency score
// is 1/(1+age/30), halving roughly every month.
const recencyHalfLifeDays = 30.0

// Rank orders records by a blend of lexical similarity to the query and
// recency, and returns the top k. recencyWeight 0 ranks purely by
// similarity. Backends without a native relevance query share this
// scoring so semantic and episodic search behave the same everywhere.
func Rank(records []Record, query string, k int, recencyWeight float64, now time.Time) []Record {
	type scored struct {
		rec   Record
		score float64
	}

	queryTokens := tokenize(query)
	items := make([]scored, 0, len(records))
	for _, rec := range records {
		similarity := overlap(queryTokens, tokenize(rec.Content))

		recency := 0.0
		if !rec.CreatedAt.IsZero() {
			ageDays := now.Sub(rec.CreatedAt).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			recency = 1.0 / (1.0 + ageDays/recencyHalfLifeDays)
		}

		items = append(items, scored{
			rec:   rec,
			score: (1-recencyWeight)*similarity + recencyWeight*recency,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if k > 0 && len(items) > k {
		items = items[:k]
	}
	out := make([]Record, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(s)) {
		token := strings.Trim(field, ".,!?:;\"'()")
		if len(token) > 2 {
			tokens[token] = true
		}
	}
	return tokens
}

// overlap is the fraction of query tokens present in the document.
func overlap(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for token := range query {
		if doc[token] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
