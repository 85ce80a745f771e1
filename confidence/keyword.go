package confidence

import (
	"context"
	"regexp"
	"strings"

	"github.com/hupe1980/expertmesh/domain"
)

// KeywordOptions configures a Keyword estimator.
type KeywordOptions struct {
	// CaseSensitive toggles case sensitive keyword matching.
	CaseSensitive bool

	// BoostExactMatches doubles the weight of word-boundary matches relative
	// to substring matches.
	BoostExactMatches bool
}

// Keyword estimates confidence from keyword matches. Substring matches count
// once; exact word-boundary matches count double when boosting is enabled.
// Scores are clamped to 1.
type Keyword struct {
	domainSet
	partial map[string]*regexp.Regexp
	exact   map[string]*regexp.Regexp
	opts    KeywordOptions
}

// NewKeyword creates a Keyword estimator with exact-match boosting enabled.
func NewKeyword(optFns ...func(o *KeywordOptions)) *Keyword {
	opts := KeywordOptions{BoostExactMatches: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Keyword{
		domainSet: newDomainSet(),
		partial:   make(map[string]*regexp.Regexp),
		exact:     make(map[string]*regexp.Regexp),
		opts:      opts,
	}
}

// AddDomain registers a profile and compiles its keyword patterns.
func (e *Keyword) AddDomain(_ context.Context, profile *domain.Profile) error {
	e.add(profile)

	if len(profile.Keywords) == 0 {
		delete(e.partial, profile.ID)
		delete(e.exact, profile.ID)
		return nil
	}

	quoted := make([]string, len(profile.Keywords))
	for i, kw := range profile.Keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	alternation := strings.Join(quoted, "|")

	prefix := ""
	if !e.opts.CaseSensitive {
		prefix = `(?i)`
	}

	partial, err := regexp.Compile(prefix + `(?:` + alternation + `)`)
	if err != nil {
		return err
	}
	exact, err := regexp.Compile(prefix + `\b(?:` + alternation + `)\b`)
	if err != nil {
		return err
	}

	e.partial[profile.ID] = partial
	e.exact[profile.ID] = exact

	return nil
}

// Estimate implements Estimator.
func (e *Keyword) Estimate(_ context.Context, query string, available []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(available))

	for _, id := range available {
		profile, ok := e.profiles[id]
		if !ok || len(profile.Keywords) == 0 {
			scores[id] = 0
			continue
		}

		partialMatches := len(e.partial[id].FindAllString(query, -1))
		exactMatches := len(e.exact[id].FindAllString(query, -1))
		totalKeywords := len(profile.Keywords)

		var score float64
		if e.opts.BoostExactMatches {
			score = float64(exactMatches*2+partialMatches) / float64(totalKeywords*2)
		} else {
			score = float64(partialMatches) / float64(totalKeywords)
		}
		if score > 1 {
			score = 1
		}

		scores[id] = score
	}

	return scores, nil
}
