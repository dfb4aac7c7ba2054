package transcript

import "strings"

// ViewMode selects a transcript projection.
type ViewMode string

const (
	ViewRaw      ViewMode = "raw"
	ViewEnhanced ViewMode = "enhanced"
	ViewHybrid   ViewMode = "hybrid"
)

// Render returns the requested projection over the raw turns and
// enhanced buffers. Unknown modes fall back to raw.
func Render(mode ViewMode, agg *Aggregator, merger *Merger) string {
	switch mode {
	case ViewEnhanced:
		return merger.Text()
	case ViewHybrid:
		return Hybrid(agg, merger)
	default:
		return agg.Text()
	}
}

// Hybrid joins the enhanced view to the raw tail: turns whose order is
// past the merger's watermark have no enhanced counterpart yet and are
// appended verbatim. Both sides are trimmed before joining so fragment
// spacing does not double up at the seam.
func Hybrid(agg *Aggregator, merger *Merger) string {
	enhanced := strings.TrimSpace(merger.Text())
	tail := strings.TrimSpace(agg.TextAfter(merger.Watermark()))
	switch {
	case enhanced == "":
		return tail
	case tail == "":
		return enhanced
	default:
		return enhanced + " " + tail
	}
}
