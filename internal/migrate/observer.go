package migrate

// Outcome is what happened to a single source layer.
type Outcome string

const (
	OutcomeConverted Outcome = "converted"
	OutcomeSkipped   Outcome = "skipped"
)

// LayerResult describes one completed layer.
type LayerResult struct {
	Layer   string
	Outcome Outcome
	Records int
	// Index is the 1-based position of the layer in the source listing.
	Index int
	Total int
}

// Observer receives progress and diagnostics from a migration run.
// Implementations must not block for long; the run waits on each call.
type Observer interface {
	// Started is called once the source layers are known.
	Started(runID string, total int)

	// LayerDone is called after each converted or skipped layer.
	LayerDone(result LayerResult)

	// Warning reports a non-fatal condition such as a skipped layer.
	Warning(err error)

	// Failed reports the error that ends the run.
	Failed(err error)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Started(string, int)   {}
func (NopObserver) LayerDone(LayerResult) {}
func (NopObserver) Warning(error)         {}
func (NopObserver) Failed(error)          {}
