package client

import (
	"sort"
	"strings"

	"github.com/stemsi/quizly-backend/internal/model"
)

// FilterAll matches any topic or difficulty.
const FilterAll = "all"

// Filter narrows a Catalog. Empty fields and FilterAll match everything.
type Filter struct {
	Search     string
	Topic      string
	Difficulty string
}

// Catalog is a normalized in-memory copy of the quiz listing.
type Catalog struct {
	quizzes []model.QuizSummary
}

// NewCatalog trims text fields, canonicalizes difficulty and orders the
// listing newest first.
func NewCatalog(items []model.QuizSummary) *Catalog {
	quizzes := make([]model.QuizSummary, len(items))
	for i, q := range items {
		q.Title = strings.TrimSpace(q.Title)
		q.Description = strings.TrimSpace(q.Description)
		q.Topic = strings.TrimSpace(q.Topic)
		if d, ok := model.ParseDifficulty(string(q.Difficulty)); ok {
			q.Difficulty = d
		}
		quizzes[i] = q
	}
	sort.SliceStable(quizzes, func(i, j int) bool {
		return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt)
	})
	return &Catalog{quizzes: quizzes}
}

// Len is the number of quizzes held.
func (c *Catalog) Len() int { return len(c.quizzes) }

// Filter returns the quizzes whose title or description contains Search
// (case-insensitive) and whose topic and difficulty match.
func (c *Catalog) Filter(f Filter) []model.QuizSummary {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	topic := strings.TrimSpace(f.Topic)

	difficulty := strings.TrimSpace(f.Difficulty)
	anyDifficulty := difficulty == "" || strings.EqualFold(difficulty, FilterAll)
	want, known := model.ParseDifficulty(difficulty)

	out := make([]model.QuizSummary, 0, len(c.quizzes))
	if !anyDifficulty && !known {
		return out
	}
	for _, q := range c.quizzes {
		if search != "" &&
			!strings.Contains(strings.ToLower(q.Title), search) &&
			!strings.Contains(strings.ToLower(q.Description), search) {
			continue
		}
		if topic != "" && !strings.EqualFold(topic, FilterAll) && !strings.EqualFold(q.Topic, topic) {
			continue
		}
		if !anyDifficulty && q.Difficulty != want {
			continue
		}
		out = append(out, q)
	}
	return out
}

// Topics lists the distinct non-empty topics, sorted.
func (c *Catalog) Topics() []string {
	seen := make(map[string]struct{})
	topics := make([]string, 0)
	for _, q := range c.quizzes {
		if q.Topic == "" {
			continue
		}
		key := strings.ToLower(q.Topic)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		topics = append(topics, q.Topic)
	}
	sort.Strings(topics)
	return topics
}
