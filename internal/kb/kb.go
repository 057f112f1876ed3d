package kb

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one answerable topic: restaurant hours, menu, parking, and so
// on. Keywords drive retrieval; Answer is sent to the user verbatim.
type Document struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

type file struct {
	Documents []Document `yaml:"documents"`
}

// Store holds the knowledge base in memory. Documents are loaded once at
// startup; there is no reload.
type Store struct {
	docs []Document
}

func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}

	for i, doc := range f.Documents {
		if doc.ID == "" || doc.Answer == "" {
			return nil, fmt.Errorf("knowledge base document %d missing id or answer", i)
		}
	}
	return &Store{docs: f.Documents}, nil
}

func NewStore(docs []Document) *Store {
	return &Store{docs: docs}
}

// Len returns the number of loaded documents.
func (s *Store) Len() int {
	return len(s.docs)
}

type scored struct {
	doc   Document
	score int
}

// Search returns up to limit documents whose keywords appear in the query,
// best match first. Scoring is plain keyword counting; ties break on
// document order.
func (s *Store) Search(query string, limit int) []Document {
	if limit <= 0 {
		limit = 3
	}
	lowered := strings.ToLower(query)

	var matches []scored
	for _, doc := range s.docs {
		score := 0
		for _, kw := range doc.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(kw)) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{doc: doc, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Document, len(matches))
	for i, m := range matches {
		out[i] = m.doc
	}
	return out
}

// Best returns the single best match, or nil when nothing matches.
func (s *Store) Best(query string) *Document {
	results := s.Search(query, 1)
	if len(results) == 0 {
		return nil
	}
	return &results[0]
}
