package runtime

import (
	"errors"
	"testing"
	"time"
)

func TestParseBackoff(t *testing.T) {
	got := ParseBackoff("10, 20,40")
	want := []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("backoff[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseBackoffFallsBack(t *testing.T) {
	for _, spec := range []string{"", "abc", "30,-5", "30,,60"} {
		got := ParseBackoff(spec)
		if len(got) != len(DefaultBackoff) || got[0] != DefaultBackoff[0] {
			t.Fatalf("ParseBackoff(%q) = %v, want default ladder", spec, got)
		}
	}
}

func TestResultRouting(t *testing.T) {
	if OK().Failed() || Skip("exists").Failed() {
		t.Fatal("ok/skip must not count as failed")
	}
	if !TransientErr(errors.New("x")).Failed() || !TerminalErr(errors.New("x")).Failed() {
		t.Fatal("transient/terminal must count as failed")
	}
	if got := TransientErr(errors.New("boom")).ErrorString(); got != "boom" {
		t.Fatalf("ErrorString = %q, want boom", got)
	}
	if got := Skip("exists").ErrorString(); got != "exists" {
		t.Fatalf("ErrorString = %q, want exists", got)
	}
}
