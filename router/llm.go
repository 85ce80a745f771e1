package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
	"github.com/tidwall/gjson"
)

// defaultJudgePrompt asks the judge for a JSON score map. {domains} and
// {query} are substituted at call time.
const defaultJudgePrompt = `You are a domain routing expert. Given a query and a list of available domains, determine which domain(s) are most relevant to answer the query.

Available domains:
{domains}

Query: {query}

For each domain, provide a relevance score from 0.0 to 1.0, where:
- 0.0 = completely irrelevant
- 0.5 = somewhat relevant
- 1.0 = highly relevant

Respond in JSON format:
{
  "domain_scores": {
    "domain_name": score,
    ...
  },
  "reasoning": "Brief explanation of your scoring"
}`

// LLMOptions configures an LLMRouter.
type LLMOptions struct {
	// Threshold is the minimum judge score for a routing decision.
	Threshold float64

	// PromptTemplate overrides the default judge prompt. It must contain the
	// {domains} and {query} placeholders.
	PromptTemplate string

	Logger logging.Logger
}

// LLMRouter delegates routing to a designated judge expert. The judge
// receives the candidate domain descriptions and must answer with a JSON
// domain_scores map. A malformed or failed response yields no selection
// rather than an error.
type LLMRouter struct {
	domainSet
	judge expert.Generator
	opts  LLMOptions
}

// NewLLM creates an LLMRouter backed by the given judge expert.
func NewLLM(judge expert.Generator, optFns ...func(o *LLMOptions)) *LLMRouter {
	opts := LLMOptions{
		Threshold:      0.6,
		PromptTemplate: defaultJudgePrompt,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &LLMRouter{
		domainSet: newDomainSet(),
		judge:     judge,
		opts:      opts,
	}
}

// AddDomain registers a profile for inclusion in judge prompts.
func (r *LLMRouter) AddDomain(_ context.Context, profile *domain.Profile) error {
	r.add(profile)
	return nil
}

// Route implements Router.
func (r *LLMRouter) Route(ctx context.Context, query string, available []string) (Selection, bool) {
	return pickBest(r.scores(ctx, query, available), available, r.opts.Threshold)
}

// RouteMultiple implements Router.
func (r *LLMRouter) RouteMultiple(ctx context.Context, query string, available []string, k int) []Selection {
	return rankSelections(r.scores(ctx, query, available), available, k, r.opts.Threshold)
}

func (r *LLMRouter) scores(ctx context.Context, query string, available []string) map[string]float64 {
	if r.judge == nil {
		r.opts.Logger.Warn("No judge expert configured for LLM routing")
		return nil
	}

	var descriptions []string
	for _, id := range available {
		profile, ok := r.profiles[id]
		if !ok {
			continue
		}
		desc := fmt.Sprintf("- %s: %s", id, profile.Description)
		if len(profile.Keywords) > 0 {
			kws := profile.Keywords
			if len(kws) > 5 {
				kws = kws[:5]
			}
			desc += fmt.Sprintf(" (Keywords: %s)", strings.Join(kws, ", "))
		}
		descriptions = append(descriptions, desc)
	}
	if len(descriptions) == 0 {
		return nil
	}

	prompt := strings.NewReplacer(
		"{domains}", strings.Join(descriptions, "\n"),
		"{query}", query,
	).Replace(r.opts.PromptTemplate)

	response, err := r.judge.Generate(ctx, prompt, expert.Params{})
	if err != nil {
		r.opts.Logger.Warn("Judge expert call failed", "error", err)
		return nil
	}

	return parseJudgeScores(response, available)
}

// parseJudgeScores extracts the domain_scores object from the judge response.
// The response may wrap the JSON in prose; everything outside the outermost
// braces is ignored. Scores outside [0,1] and unknown domains are dropped.
// Anything unparseable yields an empty map.
func parseJudgeScores(response string, available []string) map[string]float64 {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil
	}

	body := response[start : end+1]
	if !gjson.Valid(body) {
		return nil
	}

	domainScores := gjson.Get(body, "domain_scores")
	if !domainScores.Exists() {
		return nil
	}

	scores := make(map[string]float64)
	for _, id := range available {
		if v := domainScores.Get(id); v.Exists() {
			score := v.Float()
			if score >= 0 && score <= 1 {
				scores[id] = score
			}
		}
	}

	return scores
}
