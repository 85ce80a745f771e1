package confidence

import (
	"fmt"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
)

// Kind identifies an estimation strategy.
type Kind string

const (
	// KindKeyword scores by keyword matching.
	KindKeyword Kind = "keyword"
	// KindEmbedding scores by embedding similarity.
	KindEmbedding Kind = "embedding"
	// KindTFIDF scores by TF-IDF similarity.
	KindTFIDF Kind = "tfidf"
	// KindLLM scores via a judge expert.
	KindLLM Kind = "llm"
)

// Config carries the cross-strategy parameters understood by New.
type Config struct {
	Temperature float64

	// Embedder backs KindEmbedding.
	Embedder expert.Embedder

	// Judge backs KindLLM.
	Judge expert.Generator

	Logger logging.Logger
}

// New constructs an estimator of the given kind.
func New(kind Kind, cfg Config) (Estimator, error) {
	switch kind {
	case KindKeyword:
		return NewKeyword(), nil
	case KindEmbedding:
		if cfg.Embedder == nil {
			return nil, fmt.Errorf("estimator kind %q requires an embedder", kind)
		}
		return NewEmbedding(cfg.Embedder, func(o *EmbeddingOptions) {
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
		}), nil
	case KindTFIDF:
		return NewTFIDF(), nil
	case KindLLM:
		if cfg.Judge == nil {
			return nil, fmt.Errorf("estimator kind %q requires a judge expert", kind)
		}
		return NewLLM(cfg.Judge, func(o *LLMOptions) {
			if cfg.Logger != nil {
				o.Logger = cfg.Logger
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported estimator kind: %q", kind)
	}
}
