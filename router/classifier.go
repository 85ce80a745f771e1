package router

import (
	"context"

	"github.com/hupe1980/expertmesh/domain"
	"github.com/hupe1980/expertmesh/internal/tfidf"
	"github.com/hupe1980/expertmesh/logging"
)

// Classifier predicts per-label probabilities for a query. The bundled
// tfidf.NearestCentroid satisfies it; callers can plug any offline-trained
// model exposing the same shape.
type Classifier interface {
	Predict(query string) map[string]float64
}

// ClassifierOptions configures a ClassifierRouter.
type ClassifierOptions struct {
	// Threshold is the minimum predicted probability for a routing decision.
	Threshold float64

	Logger logging.Logger
}

// ClassifierRouter routes with a pre-trained text classifier. The score for a
// domain is the predicted class probability, restricted to domains that are
// both known to the classifier and currently available.
type ClassifierRouter struct {
	domainSet
	classifier Classifier
	opts       ClassifierOptions
}

// NewClassifier creates a ClassifierRouter around a trained classifier.
func NewClassifier(classifier Classifier, optFns ...func(o *ClassifierOptions)) *ClassifierRouter {
	opts := ClassifierOptions{
		Threshold: 0.6,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ClassifierRouter{
		domainSet:  newDomainSet(),
		classifier: classifier,
		opts:       opts,
	}
}

// TrainClassifier fits a nearest-centroid classifier on labelled examples and
// installs it, replacing any previous classifier.
func (r *ClassifierRouter) TrainClassifier(samples []tfidf.Sample) {
	r.classifier = tfidf.Train(samples)
}

// AddDomain registers a profile. The classifier itself is trained separately;
// the profile only gates which labels are routable.
func (r *ClassifierRouter) AddDomain(_ context.Context, profile *domain.Profile) error {
	r.add(profile)
	return nil
}

// Route implements Router.
func (r *ClassifierRouter) Route(_ context.Context, query string, available []string) (Selection, bool) {
	return pickBest(r.scores(query, available), available, r.opts.Threshold)
}

// RouteMultiple implements Router.
func (r *ClassifierRouter) RouteMultiple(_ context.Context, query string, available []string, k int) []Selection {
	return rankSelections(r.scores(query, available), available, k, r.opts.Threshold)
}

func (r *ClassifierRouter) scores(query string, available []string) map[string]float64 {
	if r.classifier == nil {
		r.opts.Logger.Warn("No classifier configured for classifier routing")
		return nil
	}

	predictions := r.classifier.Predict(query)

	scores := make(map[string]float64, len(available))
	for _, id := range available {
		if p, ok := predictions[id]; ok {
			scores[id] = p
		}
	}

	return scores
}
