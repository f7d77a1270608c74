package fluid

import (
	"sync/atomic"
	"testing"
)

func TestPoolForEachCoversEveryIndexOnce(t *testing.T) {
	p := newTestPool(t)

	for _, n := range []int{0, 1, 17, parallelThreshold - 1, parallelThreshold, 10007} {
		hits := make([]int32, n)
		p.ForEach(n, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("n=%d: index %d visited %d times", n, i, h)
			}
		}
	}
}

func TestPoolForEachIsBarrier(t *testing.T) {
	p := newTestPool(t)
	const n = 4096
	buf := make([]int, n)

	for pass := 1; pass <= 5; pass++ {
		p.ForEach(n, func(start, end int) {
			for i := start; i < end; i++ {
				buf[i]++
			}
		})
		for i, v := range buf {
			if v != pass {
				t.Fatalf("pass %d: buf[%d] = %d before barrier released", pass, i, v)
			}
		}
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(2)
	p.ForEach(1000, func(start, end int) {})
	p.Close()
	p.Close()

	// Restarts lazily after close.
	var total int64
	p.ForEach(1000, func(start, end int) {
		atomic.AddInt64(&total, int64(end-start))
	})
	p.Close()
	if total != 1000 {
		t.Errorf("total = %d, want 1000", total)
	}
}

func BenchmarkPoolForEach(b *testing.B) {
	p := NewPool(0)
	defer p.Close()
	buf := make([]float32, 64*64*64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.ForEach(len(buf), func(start, end int) {
			for j := start; j < end; j++ {
				buf[j] = buf[j]*0.5 + 1
			}
		})
	}
}
