package nlu

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/pkg/logger"
)

// Refiner optionally improves low-confidence keyword classifications. The
// LLM-backed implementation lives in refiner.go; a nil Refiner disables
// refinement.
type Refiner interface {
	// RefineIntent must return a label from candidates, or
	// model.IntentUnknown.
	RefineIntent(ctx context.Context, text string, candidates []string) (string, float64, error)
}

// Pipeline produces intent, entities and sentiment for a turn.
type Pipeline struct {
	threshold float64
	refiner   Refiner
	logger    *logger.Logger
}

// NewPipeline creates an understanding pipeline with the configured
// confidence threshold. refiner may be nil.
func NewPipeline(threshold float64, refiner Refiner, log *logger.Logger) *Pipeline {
	return &Pipeline{
		threshold: threshold,
		refiner:   refiner,
		logger:    log,
	}
}

// Understand runs the three sub-steps concurrently; they are read-only over
// the same input. All must complete before the context manager proceeds.
//
// Confidence below the threshold forces intent to unknown regardless of the
// raw classifier output: a wrong automated action is costlier than asking a
// clarifying question.
func (p *Pipeline) Understand(ctx context.Context, text string, window []model.Turn) (model.UnderstandingResult, error) {
	var (
		intent     string
		confidence float64
		entities   []model.Entity
		sentiment  float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent, confidence = classifyIntent(text)
		if confidence < p.threshold && p.refiner != nil {
			refined, conf, err := p.refiner.RefineIntent(gctx, text, Labels())
			if err == nil && conf > confidence {
				intent, confidence = refined, conf
			}
			// Refiner failures degrade silently to the keyword result.
		}
		return nil
	})
	g.Go(func() error {
		entities = extractEntities(text)
		return nil
	})
	g.Go(func() error {
		sentiment = scoreSentiment(text)
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.UnderstandingResult{}, err
	}

	result := model.UnderstandingResult{
		Intent:         intent,
		Confidence:     confidence,
		Entities:       entities,
		Sentiment:      sentiment,
		HumanRequested: requestsHuman(text),
	}

	if result.Confidence < p.threshold {
		result.Intent = model.IntentUnknown
	}

	return result, nil
}

// EndSignal reports whether the text is an explicit end-of-conversation
// signal.
func EndSignal(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range []string{"bye", "goodbye", "that's all", "that is all", "we're done"} {
		if lower == kw || strings.HasPrefix(lower, kw+" ") || strings.HasSuffix(lower, " "+kw) {
			return true
		}
	}
	return false
}
