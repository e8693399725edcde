package compressor

import "testing"

func TestPolicyStartCapsLongestSide(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		w, h int
		want float64
	}{
		{4000, 3000, 1},
		{800, 600, 1},
		{8000, 2000, 0.5},
		{2000, 16000, 0.25},
	}
	for _, c := range cases {
		if got := p.Start(c.w, c.h); got.Scale != c.want || got.Quality != 90 {
			t.Errorf("Start(%d,%d) = %+v, want scale %v quality 90", c.w, c.h, got, c.want)
		}
	}
}

func TestPolicyNextSequence(t *testing.T) {
	p := DefaultPolicy()
	a := p.Start(1000, 1000)

	var qualities []int
	var scales []float64
	for {
		next, ok := p.Next(a)
		if !ok {
			break
		}
		if next.Quality > a.Quality || next.Scale > a.Scale {
			t.Fatalf("Next(%+v) = %+v increased a knob", a, next)
		}
		a = next
		qualities = append(qualities, a.Quality)
		scales = append(scales, a.Scale)
	}

	if len(qualities) != 17 {
		t.Fatalf("got %d steps, want 17: %v", len(qualities), qualities)
	}
	if a.Quality != 5 {
		t.Fatalf("final quality = %d, want 5", a.Quality)
	}
	if a.Scale != 0.75 {
		t.Fatalf("final scale = %v, want 0.75", a.Scale)
	}
	// Resolution only starts shrinking once quality drops below 30.
	for i, q := range qualities {
		if q >= 30 && scales[i] != 1 {
			t.Errorf("quality %d shrank scale to %v", q, scales[i])
		}
	}
	if scales[len(scales)-5] != 0.95 {
		t.Errorf("first shrink at quality 25 should give 0.95, got %v", scales[len(scales)-5])
	}
}

func TestPolicyNextClampsToFloor(t *testing.T) {
	p := DefaultPolicy()
	p.QualityStep = 7
	a := Attempt{Quality: 9, Scale: 1}
	next, ok := p.Next(a)
	if !ok || next.Quality != 5 {
		t.Fatalf("Next = %+v, %v; want quality clamped to 5", next, ok)
	}
	if _, ok := p.Next(next); ok {
		t.Fatalf("Next at floor should stop")
	}
}

func TestPolicyNextKeepsScalePositive(t *testing.T) {
	p := DefaultPolicy()
	a := Attempt{Quality: 20, Scale: 0.07}
	next, ok := p.Next(a)
	if !ok {
		t.Fatalf("expected another step")
	}
	if next.Scale != 0.07 {
		t.Fatalf("scale = %v, want unchanged 0.07", next.Scale)
	}
}

func TestAttemptDimensionsNeverZero(t *testing.T) {
	w, h := Attempt{Scale: 0.05}.Dimensions(10, 3)
	if w != 1 || h != 1 {
		t.Fatalf("Dimensions = %dx%d, want 1x1", w, h)
	}
	w, h = Attempt{Scale: 0.5}.Dimensions(4001, 3000)
	if w != 2000 || h != 1500 {
		t.Fatalf("Dimensions = %dx%d", w, h)
	}
}
