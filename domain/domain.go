// Package domain models the expertise profiles that routers and confidence
// estimators score queries against. A Profile describes what an expert knows:
// a prose description, trigger keywords, representative example queries and an
// optional precomputed embedding.
package domain

import "strings"

// Profile describes one area of expertise. The ID links the profile to a
// registered expert.
type Profile struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords,omitempty"`
	Examples    []string  `json:"examples,omitempty"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// New creates a Profile with the given ID and description.
func New(id, description string) *Profile {
	return &Profile{ID: id, Description: description}
}

// WithKeywords sets the trigger keywords, dropping duplicates and empties
// while preserving first-seen order.
func (p *Profile) WithKeywords(keywords ...string) *Profile {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	p.Keywords = out
	return p
}

// WithExamples sets representative example queries.
func (p *Profile) WithExamples(examples ...string) *Profile {
	p.Examples = append([]string(nil), examples...)
	return p
}

// WithEmbedding attaches a precomputed description embedding so
// embedding-based routing can skip the embed call for this profile.
func (p *Profile) WithEmbedding(vec []float64) *Profile {
	p.Embedding = append([]float64(nil), vec...)
	return p
}

// Text renders the profile as a single passage suitable for embedding or for
// inclusion in routing prompts.
func (p *Profile) Text() string {
	var b strings.Builder
	b.WriteString(p.Description)
	if len(p.Keywords) > 0 {
		b.WriteString(". Keywords: ")
		b.WriteString(strings.Join(p.Keywords, ", "))
	}
	if len(p.Examples) > 0 {
		b.WriteString(". Examples: ")
		b.WriteString(strings.Join(p.Examples, "; "))
	}
	return b.String()
}
