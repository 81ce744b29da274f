package tracedata

import "testing"

func TestParseTimestampRoundTrip(t *testing.T) {
	cases := []string{"0.000010", "1.100000000", "0.205", "123.456789:"}
	for _, s := range cases {
		ts, err := ParseTimestamp(s)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", s, err)
		}
		want, err := ParseTimestamp(ts.String())
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) (round-trip) error: %v", ts.String(), err)
		}
		if ts != want {
			t.Errorf("round trip for %q: got %v, want %v", s, want, ts)
		}
	}
}

func TestTimestampArithmetic(t *testing.T) {
	a, _ := ParseTimestamp("1.000000000")
	b, _ := ParseTimestamp("0.000000020")
	if got, want := a.Sub(b), Timestamp(999999980); got != want {
		t.Errorf("Sub() = %d, want %d", got, want)
	}
	if got, want := b.Mul(3), Timestamp(60); got != want {
		t.Errorf("Mul(3) = %d, want %d", got, want)
	}
	if got := a.Cmp(b); got != 1 {
		t.Errorf("Cmp() = %d, want 1", got)
	}
	neg := Timestamp(-5)
	if got, want := neg.Abs(), Timestamp(5); got != want {
		t.Errorf("Abs() = %d, want %d", got, want)
	}
}

func TestFormatPrecision(t *testing.T) {
	ts, _ := ParseTimestamp("1.123456789")
	if got, want := ts.Format(3), "1.123"; got != want {
		t.Errorf("Format(3) = %q, want %q", got, want)
	}
	if got, want := ts.Format(0), "1"; got != want {
		t.Errorf("Format(0) = %q, want %q", got, want)
	}
}

func TestPrecision(t *testing.T) {
	if got, want := Precision("0.000010"), 6; got != want {
		t.Errorf("Precision() = %d, want %d", got, want)
	}
	if got, want := Precision("10:"), 0; got != want {
		t.Errorf("Precision() = %d, want %d", got, want)
	}
}

func TestFromSecondsAndSeconds(t *testing.T) {
	ts := FromSeconds(1.5)
	if got, want := ts, Timestamp(1500000000); got != want {
		t.Errorf("FromSeconds(1.5) = %d, want %d", got, want)
	}
	if got, want := ts.Seconds(), 1.5; got != want {
		t.Errorf("Seconds() = %v, want %v", got, want)
	}
}
