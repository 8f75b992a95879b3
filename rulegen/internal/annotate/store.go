package annotate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Annotations groups extracted annotations by originating field. All is the
// deduplicated union in topic, description, examples order.
type Annotations struct {
	All             []string `json:"all"`
	FromTopic       []string `json:"from_topic"`
	FromDescription []string `json:"from_description"`
	FromExamples    []string `json:"from_examples"`
}

// Keywords groups extracted keywords by originating field.
type Keywords struct {
	FromFramework   []string `json:"from_framework_name"`
	FromTopic       []string `json:"from_topic"`
	FromDescription []string `json:"from_description"`
}

// Profile is the per-row extraction result.
type Profile struct {
	Ordinal         int         `json:"ordinal"`
	Framework       string      `json:"framework"`
	Topic           string      `json:"topic"`
	Description     string      `json:"description"`
	Annotations     Annotations `json:"annotations"`
	AnnotationCount int         `json:"annotation_count"`
	Keywords        Keywords    `json:"keywords"`
}

// NewProfile extracts annotations and keywords from one row.
func NewProfile(ordinal int, rec Record) *Profile {
	fromTopic := ExtractAnnotations(rec.Topic)
	fromDesc := ExtractAnnotations(rec.Description)
	fromExamples := ExtractAnnotations(rec.Examples)
	all := mergeUnique(fromTopic, fromDesc, fromExamples)

	p := &Profile{
		Ordinal:         ordinal,
		Framework:       rec.Framework,
		Topic:           rec.Topic,
		Description:     rec.Description,
		AnnotationCount: len(all),
		Annotations: Annotations{
			All:             all,
			FromTopic:       fromTopic,
			FromDescription: fromDesc,
			FromExamples:    fromExamples,
		},
		Keywords: Keywords{
			FromFramework:   ExtractKeywords(rec.Framework),
			FromTopic:       ExtractKeywords(rec.Topic),
			FromDescription: ExtractKeywords(rec.Description),
		},
	}
	return p
}

// OrderedKeywords returns the profile's keywords in priority order
// (framework, topic, description), deduplicated.
func (p *Profile) OrderedKeywords() []string {
	return mergeUnique(p.Keywords.FromFramework, p.Keywords.FromTopic, p.Keywords.FromDescription)
}

// Store accumulates profiles across a run. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	profiles map[int]*Profile
	logger   *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		profiles: make(map[int]*Profile),
		logger:   logger.With("component", "annotate.store"),
	}
}

// ExtractAndStore builds the profile for one row and records it, replacing
// any earlier profile for the same ordinal.
func (s *Store) ExtractAndStore(ordinal int, rec Record) *Profile {
	p := NewProfile(ordinal, rec)

	s.mu.Lock()
	s.profiles[ordinal] = p
	s.mu.Unlock()

	s.logger.Debug("profile stored",
		"ordinal", ordinal,
		"annotations", p.AnnotationCount,
		"keywords", len(p.OrderedKeywords()))
	return p
}

// Get returns the profile for ordinal, or nil.
func (s *Store) Get(ordinal int) *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[ordinal]
}

// Len returns the number of stored profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// TermCounts returns every distinct annotation and keyword across all
// stored profiles with the number of profiles each appears in.
func (s *Store) TermCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, p := range s.profiles {
		for _, t := range mergeUnique(p.Annotations.All, p.OrderedKeywords()) {
			counts[t]++
		}
	}
	return counts
}

// UniqueTerms returns the sorted union of all annotations and keywords
// across every stored profile.
func (s *Store) UniqueTerms() []string {
	counts := s.TermCounts()
	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

type storeDoc struct {
	TotalUniqueTerms int            `json:"total_unique_terms"`
	TermCounts       map[string]int `json:"unique_terms"`
	Profiles         []*Profile     `json:"profiles"`
}

// Export renders the store as JSON: the unique-term summary (sorted by the
// JSON encoder's key ordering) plus every profile ordered by ordinal.
func (s *Store) Export() ([]byte, error) {
	counts := s.TermCounts()

	s.mu.RLock()
	profiles := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	s.mu.RUnlock()
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Ordinal < profiles[j].Ordinal })

	doc := storeDoc{
		TotalUniqueTerms: len(counts),
		TermCounts:       counts,
		Profiles:         profiles,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("annotate: marshal store: %w", err)
	}
	return data, nil
}

// ExportTo writes the Export output atomically to path.
func (s *Store) ExportTo(path string) error {
	data, err := s.Export()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("annotate: mkdir %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("annotate: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("annotate: rename %s: %w", tmp, err)
	}
	return nil
}

// Load replaces the store contents with profiles read from a previous
// Export file. A missing or malformed file leaves the store empty; that is
// logged, not fatal, since the store is rebuilt during a run anyway.
func (s *Store) Load(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[int]*Profile)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("store load failed", "path", path, "error", err)
		}
		return
	}
	var doc storeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("store parse failed, starting empty", "path", path, "error", err)
		return
	}
	for _, p := range doc.Profiles {
		if p == nil {
			continue
		}
		s.profiles[p.Ordinal] = p
	}
	s.logger.Info("store loaded", "path", path, "profiles", len(s.profiles))
}
