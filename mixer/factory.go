package mixer

import (
	"fmt"

	"github.com/hupe1980/expertmesh/expert"
	"github.com/hupe1980/expertmesh/logging"
)

// Kind identifies a mixing strategy.
type Kind string

const (
	// KindDefault passes through the highest-weight response.
	KindDefault Kind = "default"
	// KindConcatenation joins labelled responses.
	KindConcatenation Kind = "concatenation"
	// KindSynthesis asks a designated expert to integrate the responses.
	KindSynthesis Kind = "synthesis"
	// KindWeighted assembles weighted segments.
	KindWeighted Kind = "weighted"
	// KindConsensus extracts agreed-on key points.
	KindConsensus Kind = "consensus"
)

// Config carries the cross-strategy parameters understood by New.
type Config struct {
	// Synthesizer backs KindSynthesis.
	Synthesizer expert.Generator

	// MaxInputLength caps synthesis prompt response blocks.
	MaxInputLength int

	// Granularity selects the Weighted assembly unit.
	Granularity Granularity

	// ConsensusThreshold sets the Consensus agreement threshold.
	ConsensusThreshold float64

	Logger logging.Logger
}

// New constructs a mixer of the given kind.
func New(kind Kind, cfg Config) (Mixer, error) {
	switch kind {
	case KindDefault:
		return NewDefault(), nil
	case KindConcatenation:
		return NewConcatenation(), nil
	case KindSynthesis:
		if cfg.Synthesizer == nil {
			return nil, fmt.Errorf("mixer kind %q requires a synthesis expert", kind)
		}
		return NewSynthesis(cfg.Synthesizer, func(o *SynthesisOptions) {
			if cfg.MaxInputLength > 0 {
				o.MaxInputLength = cfg.MaxInputLength
			}
			if cfg.Logger != nil {
				o.Logger = cfg.Logger
			}
		}), nil
	case KindWeighted:
		return NewWeighted(func(o *WeightedOptions) {
			if cfg.Granularity != "" {
				o.Granularity = cfg.Granularity
			}
		}), nil
	case KindConsensus:
		return NewConsensus(func(o *ConsensusOptions) {
			if cfg.ConsensusThreshold > 0 {
				o.ConsensusThreshold = cfg.ConsensusThreshold
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported mixer kind: %q", kind)
	}
}
