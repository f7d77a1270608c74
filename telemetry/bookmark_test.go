package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_DensitySpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(FieldStats{Frame: int64(i * 30), DensityTotal: 10 + float64(i%2)})
	}

	bookmarks := bd.Check(FieldStats{Frame: 150, DensityTotal: 40})
	if !hasBookmark(bookmarks, BookmarkDensitySpike) {
		t.Fatal("expected density_spike bookmark")
	}
	if bookmarks[0].Frame != 150 {
		t.Errorf("frame = %d, want 150", bookmarks[0].Frame)
	}
}

func TestBookmarkDetector_DivergenceBlowupOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(FieldStats{Frame: int64(i), DensityTotal: 1, Divergence: 0.002})
	}

	first := bd.Check(FieldStats{Frame: 5, DensityTotal: 1, Divergence: 0.5})
	if !hasBookmark(first, BookmarkDivergenceBlowup) {
		t.Fatal("expected divergence_blowup bookmark")
	}
	// Still high relative to the history: no repeat until it recovers.
	second := bd.Check(FieldStats{Frame: 6, DensityTotal: 1, Divergence: 5})
	if hasBookmark(second, BookmarkDivergenceBlowup) {
		t.Error("blowup reported twice without recovery")
	}
}

func TestBookmarkDetector_DivergenceFloor(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bd.Check(FieldStats{Divergence: 1e-7})
	if hasBookmark(bd.Check(FieldStats{Divergence: 1e-5}), BookmarkDivergenceBlowup) {
		t.Error("divergence below the floor reported as blowup")
	}
}

func TestBookmarkDetector_Dissipated(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(FieldStats{Frame: 0, DensityTotal: 100})
	bd.Check(FieldStats{Frame: 30, DensityTotal: 50})

	bookmarks := bd.Check(FieldStats{Frame: 60, DensityTotal: 0.5})
	if !hasBookmark(bookmarks, BookmarkDissipated) {
		t.Fatal("expected dissipated bookmark")
	}
	// Peak was reset, so a further drop does not repeat it.
	if hasBookmark(bd.Check(FieldStats{Frame: 90, DensityTotal: 0.4}), BookmarkDissipated) {
		t.Error("dissipated reported twice")
	}
}

func TestBookmarkDetector_Steady(t *testing.T) {
	bd := NewBookmarkDetector(10)

	count := 0
	for i := 0; i < 20; i++ {
		if hasBookmark(bd.Check(FieldStats{Frame: int64(i), DensityTotal: 50 + float64(i%2)*0.1}), BookmarkSteady) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("steady_state reported %d times, want 1", count)
	}
}

func TestBookmarkDetector_Reset(t *testing.T) {
	bd := NewBookmarkDetector(3)
	bd.Check(FieldStats{DensityTotal: 100})
	bd.Reset()
	if len(bd.recent(10)) != 0 {
		t.Error("history not cleared")
	}
	if bookmarks := bd.Check(FieldStats{DensityTotal: 0.1}); len(bookmarks) != 0 {
		t.Errorf("bookmarks after reset: %v", bookmarks)
	}
}
