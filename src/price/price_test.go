package price

import "testing"

func TestFromDecimalStringBasic(t *testing.T) {
	p, err := FromDecimalString("150.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Cents() != 15050 {
		t.Errorf("expected 15050 cents, got %d", p.Cents())
	}
	if got := p.DecimalString(); got != "150.50" {
		t.Errorf("expected %q, got %q", "150.50", got)
	}
}

func TestFromDecimalStringRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
	}{
		{"1.005", 101}, // tie rounds away from zero
		{"1.015", 102},
		{"1.025", 103},
		{"1.00", 100},
	}
	for _, c := range cases {
		p, err := FromDecimalString(c.in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", c.in, err)
		}
		if p.Cents() != c.cents {
			t.Errorf("%q: expected %d cents, got %d", c.in, c.cents, p.Cents())
		}
	}
}

func TestFromDecimalStringRejectsNegative(t *testing.T) {
	if _, err := FromDecimalString("-1.00"); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestFromDecimalStringRejectsGarbage(t *testing.T) {
	if _, err := FromDecimalString("not-a-number"); err == nil {
		t.Error("expected error for unparseable decimal")
	}
}

func TestCompareOrdering(t *testing.T) {
	low, _ := FromDecimalString("10.00")
	high, _ := FromDecimalString("20.00")

	if !low.LessThan(high) {
		t.Error("expected 10.00 < 20.00")
	}
	if !high.GreaterThan(low) {
		t.Error("expected 20.00 > 10.00")
	}
	if low.Compare(low) != 0 {
		t.Error("expected equal prices to compare 0")
	}
}

func TestFromFloat(t *testing.T) {
	p := FromFloat(99.99)
	if p.Cents() != 9999 {
		t.Errorf("expected 9999 cents, got %d", p.Cents())
	}
}
