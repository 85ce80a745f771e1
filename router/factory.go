package router

import (
	"fmt"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
)

// Kind identifies a routing strategy.
type Kind string

const (
	// KindKeyword routes by keyword pattern matching.
	KindKeyword Kind = "keyword"
	// KindEmbedding routes by embedding similarity.
	KindEmbedding Kind = "embedding"
	// KindClassifier routes with a pre-trained text classifier.
	KindClassifier Kind = "classifier"
	// KindLLM routes via a judge expert.
	KindLLM Kind = "llm"
)

// Config carries the cross-strategy parameters understood by New. Fields not
// used by the selected kind are ignored.
type Config struct {
	Threshold   float64
	Temperature float64

	// Embedder backs KindEmbedding.
	Embedder expert.Embedder

	// Classifier backs KindClassifier.
	Classifier Classifier

	// Judge backs KindLLM.
	Judge expert.Generator

	Logger logging.Logger
}

// New constructs a router of the given kind. Unknown kinds and missing
// backing dependencies are errors.
func New(kind Kind, cfg Config) (Router, error) {
	switch kind {
	case KindKeyword:
		return NewKeyword(func(o *KeywordOptions) {
			if cfg.Threshold > 0 {
				o.Threshold = cfg.Threshold
			}
			if cfg.Logger != nil {
				o.Logger = cfg.Logger
			}
		}), nil
	case KindEmbedding:
		if cfg.Embedder == nil {
			return nil, fmt.Errorf("router kind %q requires an embedder", kind)
		}
		return NewEmbedding(cfg.Embedder, func(o *EmbeddingOptions) {
			if cfg.Threshold > 0 {
				o.Threshold = cfg.Threshold
			}
			if cfg.Temperature > 0 {
				o.Temperature = cfg.Temperature
			}
			if cfg.Logger != nil {
				o.Logger = cfg.Logger
			}
		}), nil
	case KindClassifier:
		if cfg.Classifier == nil {
			return nil, fmt.Errorf("router kind %q requires a classifier", kind)
		}
		return NewClassifier(cfg.Classifier, func(o *ClassifierOptions) {
			if cfg.Threshold > 0 {
				o.Threshold = cfg.Threshold
			}
			if cfg.Logger != nil {
				o.Logger = cfg.Logger
			}
		}), nil
	case KindLLM:
		if cfg.Judge == nil {
			return nil, fmt.Errorf("router kind %q requires a judge expert", kind)
		}
		return NewLLM(cfg.Judge, func(o *LLMOptions) {
			if cfg.Threshold > 0 {
				o.Threshold = cfg.Threshold
			}
			if cfg.Logger != nil {
				o.Logger = cfg.Logger
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported router kind: %q", kind)
	}
}
