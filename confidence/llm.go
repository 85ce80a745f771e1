package confidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
	"github.com/tidwall/gjson"
)

// defaultConfidencePrompt asks the judge for a JSON scores map. {query} and
// {domain_descriptions} are substituted at call time.
const defaultConfidencePrompt = `You are an expert at determining domain relevance for queries. Given a query and a list of domains with their descriptions, rate how relevant each domain is for answering the query.

Query: {query}

Domains:
{domain_descriptions}

For each domain, provide a relevance score from 0.0 to 1.0, where:
- 0.0 = completely irrelevant
- 0.5 = somewhat relevant
- 1.0 = highly relevant

Respond in JSON format:
{
  "scores": {
    "domain_name": score,
    ...
  },
  "reasoning": "Brief explanation of your scoring"
}`

// LLMOptions configures an LLM estimator.
type LLMOptions struct {
	// MaxDomainsPerCall caps how many domains are scored per judge call.
	// Larger candidate sets are split into batches.
	MaxDomainsPerCall int

	// PromptTemplate overrides the default prompt. It must contain the
	// {query} and {domain_descriptions} placeholders.
	PromptTemplate string

	Logger logging.Logger
}

// LLM estimates confidence by asking a judge expert to score candidate
// domains. Candidates are scored in batches; a failed or malformed batch
// contributes zero scores instead of failing the estimate.
type LLM struct {
	domainSet
	judge expert.Generator
	opts  LLMOptions
}

// NewLLM creates an LLM estimator backed by the given judge expert.
func NewLLM(judge expert.Generator, optFns ...func(o *LLMOptions)) *LLM {
	opts := LLMOptions{
		MaxDomainsPerCall: 5,
		PromptTemplate:    defaultConfidencePrompt,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &LLM{
		domainSet: newDomainSet(),
		judge:     judge,
		opts:      opts,
	}
}

// AddDomain registers a profile for inclusion in judge prompts.
func (e *LLM) AddDomain(_ context.Context, profile *domain.Profile) error {
	e.add(profile)
	return nil
}

// Estimate implements Estimator.
func (e *LLM) Estimate(ctx context.Context, query string, available []string) (map[string]float64, error) {
	if e.judge == nil {
		return zeroScores(available), nil
	}

	batchSize := e.opts.MaxDomainsPerCall
	if batchSize < 1 {
		batchSize = 1
	}

	scores := make(map[string]float64, len(available))
	for start := 0; start < len(available); start += batchSize {
		end := start + batchSize
		if end > len(available) {
			end = len(available)
		}

		for id, score := range e.estimateBatch(ctx, query, available[start:end]) {
			scores[id] = score
		}
	}

	return scores, nil
}

func (e *LLM) estimateBatch(ctx context.Context, query string, batch []string) map[string]float64 {
	descriptions := make([]string, 0, len(batch))
	for _, id := range batch {
		if profile, ok := e.profiles[id]; ok {
			desc := fmt.Sprintf("- %s: %s", id, profile.Description)
			if len(profile.Keywords) > 0 {
				kws := profile.Keywords
				if len(kws) > 5 {
					kws = kws[:5]
				}
				desc += fmt.Sprintf(" (Keywords: %s)", strings.Join(kws, ", "))
			}
			descriptions = append(descriptions, desc)
		} else {
			descriptions = append(descriptions, fmt.Sprintf("- %s: No description available", id))
		}
	}

	prompt := strings.NewReplacer(
		"{query}", query,
		"{domain_descriptions}", strings.Join(descriptions, "\n"),
	).Replace(e.opts.PromptTemplate)

	response, err := e.judge.Generate(ctx, prompt, expert.Params{})
	if err != nil {
		e.opts.Logger.Warn("Judge confidence call failed", "error", err)
		return zeroScores(batch)
	}

	return parseScores(response, batch)
}

// parseScores extracts the scores object from the judge response, clamping
// values to [0, 1]. Unparseable responses yield zero scores for the batch.
func parseScores(response string, batch []string) map[string]float64 {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return zeroScores(batch)
	}

	body := response[start : end+1]
	if !gjson.Valid(body) {
		return zeroScores(batch)
	}

	parsed := gjson.Get(body, "scores")
	if !parsed.Exists() {
		return zeroScores(batch)
	}

	scores := make(map[string]float64, len(batch))
	for _, id := range batch {
		score := 0.0
		if v := parsed.Get(id); v.Exists() {
			score = v.Float()
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
		}
		scores[id] = score
	}

	return scores
}
