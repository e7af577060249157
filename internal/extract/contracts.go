package extract

import (
	"context"

	"github.com/scanledger/scanledger/internal/entity"
)

// Strategy is one way of turning a page image into an extraction
// result. Strategies are tried in order by the Engine; a failure in
// one strategy never escapes the Engine boundary.
type Strategy interface {
	// Name is recorded on results for auditability ("llm", "ocr").
	Name() string
	// Attempt extracts from one page image. It should honor ctx
	// cancellation; the Engine enforces a per-call timeout.
	Attempt(ctx context.Context, page entity.PageImage) (entity.ExtractionResult, error)
}
