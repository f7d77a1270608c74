package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkDensitySpike     BookmarkType = "density_spike"
	BookmarkDivergenceBlowup BookmarkType = "divergence_blowup"
	BookmarkDissipated       BookmarkType = "dissipated"
	BookmarkSteady           BookmarkType = "steady_state"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `json:"type" csv:"type"`
	Frame       int64        `json:"frame" csv:"frame"`
	Description string       `json:"description" csv:"description"`
}

// LogBookmark logs the bookmark using logger.
func (b Bookmark) LogBookmark(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("bookmark",
		"type", string(b.Type),
		"frame", b.Frame,
		"description", b.Description,
	)
}

// Detection thresholds.
const (
	spikeFactor       = 2.0  // density total over rolling mean
	blowupFactor      = 4.0  // divergence over rolling mean
	blowupFloor       = 1e-3 // divergence below this never counts as a blowup
	dissipatedFrac    = 0.01 // density total left of the recent peak
	steadyCV          = 0.05 // coefficient of variation of density total
	steadyWindow      = 4
	steadyConsecutive = 5
)

// BookmarkDetector watches successive FieldStats records for moments worth
// keeping: sudden smoke injection, an unstable solve, the volume emptying
// out, or the plume settling.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []FieldStats
	historySize int
	historyIdx  int
	historyFull bool

	recentPeak   float64 // peak density total since the last dissipation
	steadyCount  int     // consecutive low-variance records
	blowupActive bool    // suppresses repeats until divergence recovers
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < steadyWindow+1 {
		historySize = steadyWindow + 1
	}
	return &BookmarkDetector{
		history:     make([]FieldStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(s FieldStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkDensitySpike(s); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkDivergenceBlowup(s); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkDissipated(s); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkSteady(s); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(s)
	if s.DensityTotal > bd.recentPeak {
		bd.recentPeak = s.DensityTotal
	}
	return bookmarks
}

// Reset forgets all history.
func (bd *BookmarkDetector) Reset() {
	*bd = BookmarkDetector{
		history:     make([]FieldStats, bd.historySize),
		historySize: bd.historySize,
	}
}

func (bd *BookmarkDetector) addToHistory(s FieldStats) {
	bd.history[bd.historyIdx] = s
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns up to n records, oldest first.
func (bd *BookmarkDetector) recent(n int) []FieldStats {
	count := bd.historyIdx
	if bd.historyFull {
		count = bd.historySize
	}
	n = min(n, count)
	out := make([]FieldStats, n)
	for i := range n {
		idx := (bd.historyIdx - n + i + bd.historySize) % bd.historySize
		out[i] = bd.history[idx]
	}
	return out
}

func (bd *BookmarkDetector) series(get func(FieldStats) float64) []float64 {
	h := bd.recent(bd.historySize)
	out := make([]float64, len(h))
	for i, s := range h {
		out[i] = get(s)
	}
	return out
}

func (bd *BookmarkDetector) checkDensitySpike(s FieldStats) *Bookmark {
	avg := stat.Mean(bd.series(func(f FieldStats) float64 { return f.DensityTotal }), nil)
	if avg <= 0 || s.DensityTotal <= spikeFactor*avg {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkDensitySpike,
		Frame:       s.Frame,
		Description: fmt.Sprintf("Density total %.3g is %.1fx the rolling mean %.3g", s.DensityTotal, s.DensityTotal/avg, avg),
	}
}

func (bd *BookmarkDetector) checkDivergenceBlowup(s FieldStats) *Bookmark {
	avg := stat.Mean(bd.series(func(f FieldStats) float64 { return f.Divergence }), nil)
	high := s.Divergence > blowupFloor && s.Divergence > blowupFactor*avg
	if !high {
		bd.blowupActive = false
		return nil
	}
	if bd.blowupActive {
		return nil
	}
	bd.blowupActive = true
	return &Bookmark{
		Type:        BookmarkDivergenceBlowup,
		Frame:       s.Frame,
		Description: fmt.Sprintf("Mean divergence %.3g exceeds %.0fx the rolling mean %.3g", s.Divergence, blowupFactor, avg),
	}
}

func (bd *BookmarkDetector) checkDissipated(s FieldStats) *Bookmark {
	if bd.recentPeak <= 0 || s.DensityTotal >= dissipatedFrac*bd.recentPeak {
		return nil
	}
	oldPeak := bd.recentPeak
	// Reset peak so the next plume can trigger again.
	bd.recentPeak = 0
	return &Bookmark{
		Type:        BookmarkDissipated,
		Frame:       s.Frame,
		Description: fmt.Sprintf("Density total fell to %.3g from peak %.3g", s.DensityTotal, oldPeak),
	}
}

func (bd *BookmarkDetector) checkSteady(s FieldStats) *Bookmark {
	if s.DensityTotal <= 0 {
		bd.steadyCount = 0
		return nil
	}
	h := bd.recent(steadyWindow)
	if len(h) < steadyWindow {
		return nil
	}
	totals := make([]float64, 0, steadyWindow+1)
	for _, r := range h {
		totals = append(totals, r.DensityTotal)
	}
	totals = append(totals, s.DensityTotal)

	mean, std := stat.MeanStdDev(totals, nil)
	if mean > 0 && std/mean < steadyCV {
		bd.steadyCount++
	} else {
		bd.steadyCount = 0
	}

	if bd.steadyCount == steadyConsecutive { // trigger exactly once per run of steady records
		return &Bookmark{
			Type:        BookmarkSteady,
			Frame:       s.Frame,
			Description: fmt.Sprintf("Density total steady near %.3g over %d records", mean, steadyConsecutive),
		}
	}
	return nil
}
