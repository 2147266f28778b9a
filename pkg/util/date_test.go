package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeChartLayout(t *testing.T) {
	got, ok := ParseTime("2021-03-01 00:00:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestFormatDateTimeUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	in := time.Date(2024, 1, 2, 5, 4, 3, 0, loc)
	if got := FormatDateTime(in); got != "2024-01-02 03:04:03" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" BTC, ,eth,")
	if len(got) != 2 || got[0] != "BTC" || got[1] != "eth" {
		t.Fatalf("unexpected split %v", got)
	}
	if SplitCSV("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}

func TestParseDefaults(t *testing.T) {
	if ParseIntDefault("x", 7) != 7 {
		t.Fatalf("int default")
	}
	if ParseDurationDefault("2s", 0) != 2*time.Second {
		t.Fatalf("duration parse")
	}
	if !ParseBoolDefault("", true) {
		t.Fatalf("bool default")
	}
}
