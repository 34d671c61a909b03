package localmedia

import "testing"

func TestFPSFromStreams(t *testing.T) {
	cases := []struct {
		name    string
		streams []ffprobeStream
		want    float64
	}{
		{
			name: "ntsc avg rate",
			streams: []ffprobeStream{
				{CodecType: "audio"},
				{CodecType: "video", AvgFrameRate: "30000/1001", RFrameRate: "30/1"},
			},
			want: 30000.0 / 1001.0,
		},
		{
			name:    "falls back to r_frame_rate",
			streams: []ffprobeStream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "60/1"}},
			want:    60,
		},
		{
			name:    "zero denominator unusable",
			streams: []ffprobeStream{{CodecType: "video", AvgFrameRate: "1/0", RFrameRate: "1/0"}},
			want:    0,
		},
		{
			name:    "no video stream",
			streams: []ffprobeStream{{CodecType: "audio"}},
			want:    0,
		},
	}
	for _, tc := range cases {
		if got := fpsFromStreams(tc.streams); got != tc.want {
			t.Fatalf("%s: fps = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGOPFromFPS(t *testing.T) {
	cases := []struct {
		fps  float64
		want int
	}{
		{30000.0 / 1001.0, 60},
		{60, 120},
		{0, 60},   // unknown fps falls back to 30 fps
		{10, 24},  // clamp low
		{500, 240}, // clamp high
	}
	for _, tc := range cases {
		if got := GOPFromFPS(tc.fps); got != tc.want {
			t.Fatalf("GOPFromFPS(%v) = %d, want %d", tc.fps, got, tc.want)
		}
	}
}

func TestParseRational(t *testing.T) {
	if v, ok := parseRational("24000/1001"); !ok || v <= 23.9 || v >= 24.0 {
		t.Fatalf("parseRational(24000/1001) = %v, %v", v, ok)
	}
	if _, ok := parseRational(""); ok {
		t.Fatal("empty should not parse")
	}
	if _, ok := parseRational("x/y"); ok {
		t.Fatal("garbage should not parse")
	}
	if v, ok := parseRational("25"); !ok || v != 25 {
		t.Fatalf("bare number = %v, %v", v, ok)
	}
}
