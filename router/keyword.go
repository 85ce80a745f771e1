package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/logging"
)

// KeywordOptions configures a KeywordRouter.
type KeywordOptions struct {
	// Threshold is the minimum keyword match ratio for a routing decision.
	Threshold float64

	// CaseSensitive toggles case sensitive keyword matching.
	CaseSensitive bool

	Logger logging.Logger
}

// KeywordRouter routes by matching domain keywords against the query with
// precompiled word-boundary regexes. The score for a domain is the number of
// distinct matched keywords divided by the domain's total keyword count, so a
// domain with no keywords always scores 0.
type KeywordRouter struct {
	domainSet
	patterns map[string]*regexp.Regexp
	opts     KeywordOptions
}

// NewKeyword creates a KeywordRouter.
func NewKeyword(optFns ...func(o *KeywordOptions)) *KeywordRouter {
	opts := KeywordOptions{
		Threshold: 0.3,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &KeywordRouter{
		domainSet: newDomainSet(),
		patterns:  make(map[string]*regexp.Regexp),
		opts:      opts,
	}
}

// AddDomain registers a profile and compiles its keyword pattern.
func (r *KeywordRouter) AddDomain(_ context.Context, profile *domain.Profile) error {
	r.add(profile)

	if len(profile.Keywords) == 0 {
		delete(r.patterns, profile.ID)
		return nil
	}

	quoted := make([]string, len(profile.Keywords))
	for i, kw := range profile.Keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}

	expr := `\b(?:` + strings.Join(quoted, "|") + `)\b`
	if !r.opts.CaseSensitive {
		expr = `(?i)` + expr
	}

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return err
	}
	r.patterns[profile.ID] = pattern

	return nil
}

// Route implements Router.
func (r *KeywordRouter) Route(_ context.Context, query string, available []string) (Selection, bool) {
	return pickBest(r.scores(query, available), available, r.opts.Threshold)
}

// RouteMultiple implements Router.
func (r *KeywordRouter) RouteMultiple(_ context.Context, query string, available []string, k int) []Selection {
	return rankSelections(r.scores(query, available), available, k, r.opts.Threshold)
}

func (r *KeywordRouter) scores(query string, available []string) map[string]float64 {
	scores := make(map[string]float64, len(available))

	for _, id := range available {
		profile, ok := r.profiles[id]
		if !ok {
			continue
		}

		pattern, ok := r.patterns[id]
		if !ok || len(profile.Keywords) == 0 {
			scores[id] = 0
			continue
		}

		matches := pattern.FindAllString(query, -1)
		distinct := make(map[string]struct{}, len(matches))
		for _, m := range matches {
			distinct[strings.ToLower(m)] = struct{}{}
		}

		scores[id] = float64(len(distinct)) / float64(len(profile.Keywords))
	}

	return scores
}
