package speech

import "testing"

func TestNormalizeLang(t *testing.T) {
	cases := map[string]string{
		"":      "en-US",
		"en":    "en-US",
		"es":    "es-ES",
		"pt-BR": "pt-BR",
		"ja":    "ja",
	}
	for in, want := range cases {
		if got := normalizeLang(in); got != want {
			t.Fatalf("normalizeLang(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGroupWordsWindows(t *testing.T) {
	words := []timedWord{
		{"one", 0, 0.5},
		{"two", 1, 1.5},
		{"three", 11, 11.5},
		{"four", 12, 12.5},
	}
	segs := groupWords(words, 10)
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if segs[0].Text != "one two" || segs[0].Start != 0 || segs[0].End != 1.5 {
		t.Fatalf("first segment = %+v", segs[0])
	}
	if segs[1].Text != "three four" || segs[1].Start != 11 || segs[1].End != 12.5 {
		t.Fatalf("second segment = %+v", segs[1])
	}
}
