package afg

import "testing"

func TestEdgeDetectorRisingOnly(t *testing.T) {
	var fired []float64
	e := NewEdgeDetector(func(t float64) { fired = append(fired, t) })
	input := []float64{0, 0, 1, 1, 1, 0, 0.2, 0.9, 0.4, 1}
	for i, v := range input {
		e.Poll(v, float64(i))
	}
	want := []float64{2, 7, 9}
	if len(fired) != len(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	}
}

func TestEdgeDetectorHighStartDoesNotFireTwice(t *testing.T) {
	n := 0
	e := NewEdgeDetector(func(float64) { n++ })
	e.Poll(1, 0)
	e.Poll(1, 1)
	e.Reset()
	e.Poll(1, 2)
	if n != 2 {
		t.Fatalf("fired %d times, want 2", n)
	}
}
