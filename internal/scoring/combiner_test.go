package scoring

import "testing"

func TestCombineWithoutSemanticScore(t *testing.T) {
	got := Combine(80, nil, DefaultCombineConfig())
	if got != 80 {
		t.Fatalf("expected rule score to pass through, got %d", got)
	}
}

func TestCombineBlends(t *testing.T) {
	semantic := 100
	got := Combine(70, &semantic, DefaultCombineConfig())
	if got != 79 {
		t.Fatalf("expected 0.7*70 + 0.3*100 = 79, got %d", got)
	}
}

func TestCombineRounds(t *testing.T) {
	semantic := 55
	// 0.7*62 + 0.3*55 = 59.9 -> 60
	got := Combine(62, &semantic, DefaultCombineConfig())
	if got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
}

func TestCombineStaysInBounds(t *testing.T) {
	for rule := 0; rule <= 100; rule += 25 {
		for sem := 0; sem <= 100; sem += 25 {
			sem := sem
			got := Combine(rule, &sem, DefaultCombineConfig())
			if got < 0 || got > 100 {
				t.Fatalf("combine(%d, %d) = %d out of bounds", rule, sem, got)
			}
		}
	}
}
