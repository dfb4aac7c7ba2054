package intel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/parley/pkg/backend"
)

// Analyzer runs user-initiated analysis requests through the backend
// and folds the returned CombinedAnalysis into the correlator, so
// manually requested and stream-delivered results live in one store.
type Analyzer struct {
	svc        backend.AnalysisService
	correlator *Correlator
	budget     *Budget
}

func NewAnalyzer(svc backend.AnalysisService, correlator *Correlator, budget *Budget) *Analyzer {
	return &Analyzer{svc: svc, correlator: correlator, budget: budget}
}

// AnalyzeText requests the given analysis types for text. An empty
// types list requests every known type. Oversized text is truncated to
// the token budget before the call.
func (a *Analyzer) AnalyzeText(ctx context.Context, bufferID int64, text string, types []backend.AnalysisType) (*backend.CombinedAnalysis, error) {
	if len(types) == 0 {
		types = backend.AllAnalysisTypes()
	}
	for _, typ := range types {
		if !typ.Valid() {
			return nil, fmt.Errorf("unknown analysis type: %s", typ)
		}
	}

	if a.budget != nil {
		cut, truncated := a.budget.Truncate(text)
		if truncated {
			slog.Debug("analysis input truncated",
				"buffer_id", bufferID,
				"tokens", a.budget.Count(text))
			text = cut
		}
	}

	ca, err := a.svc.Analyze(ctx, bufferID, text, types)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	a.correlator.Merge(*ca)
	return ca, nil
}
