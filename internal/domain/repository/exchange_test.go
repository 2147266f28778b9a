package repository

import "testing"

func TestNormalizeInterval(t *testing.T) {
	if NormalizeInterval(1440) != Interval1d {
		t.Fatalf("expected daily interval")
	}
	if NormalizeInterval(7) != Interval1w {
		t.Fatalf("unsupported interval should fall back to weekly")
	}
	if NormalizeInterval(0) != DefaultInterval() {
		t.Fatalf("zero should fall back to default")
	}
}
