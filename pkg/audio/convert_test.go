package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/MrWong99/notemate/pkg/audio"
)

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestInt16ToFloat32(t *testing.T) {
	got := audio.Int16ToFloat32([]int16{0, 16384, -32768, 32767})
	want := []float32{0, 0.5, -1, 32767.0 / 32768.0}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !approxEqual(got[i], want[i]) {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestIntToFloat32_BitDepths(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int
		bitDepth int
		want     []float32
	}{
		{"16-bit", []int{16384, -16384}, 16, []float32{0.5, -0.5}},
		{"24-bit", []int{4194304}, 24, []float32{0.5}},
		{"8-bit unsigned", []int{192, 128, 0, 64}, 8, []float32{0.5, 0, -1, -0.5}},
		{"zero depth defaults to 16", []int{16384}, 0, []float32{0.5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := audio.IntToFloat32(tc.samples, tc.bitDepth)
			for i := range tc.want {
				if !approxEqual(got[i], tc.want[i]) {
					t.Errorf("sample %d: got %f, want %f", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestDownmixFloat32(t *testing.T) {
	stereo := []float32{0.2, 0.4, -0.2, -0.4, 1}
	got := audio.DownmixFloat32(stereo, 2)
	want := []float32{0.3, -0.3}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d (trailing partial frame must be dropped)", len(got), len(want))
	}
	for i := range want {
		if !approxEqual(got[i], want[i]) {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestDownmixFloat32_MonoIsNoOp(t *testing.T) {
	mono := []float32{0.1, 0.2}
	got := audio.DownmixFloat32(mono, 1)
	if &got[0] != &mono[0] {
		t.Error("expected mono input to be returned unchanged")
	}
}

func TestResampleFloat32_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	got := audio.ResampleFloat32(in, 16000, 16000)
	if len(got) != len(in) {
		t.Fatalf("expected unchanged length %d, got %d", len(in), len(got))
	}
}

func TestResampleFloat32_Downsample(t *testing.T) {
	in := make([]float32, 44100)
	got := audio.ResampleFloat32(in, 44100, 16000)
	if len(got) != 16000 {
		t.Errorf("expected 16000 samples, got %d", len(got))
	}
}

func TestResampleFloat32_UpsampleInterpolates(t *testing.T) {
	in := []float32{0, 1}
	got := audio.ResampleFloat32(in, 1, 2)
	want := []float32{0, 0.5, 1, 1}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !approxEqual(got[i], want[i]) {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResampleFloat32_ZeroRate(t *testing.T) {
	in := []float32{0.5, 0.25}
	if got := audio.ResampleFloat32(in, 0, 16000); len(got) != len(in) {
		t.Errorf("zero srcRate: expected passthrough, got %d samples", len(got))
	}
	if got := audio.ResampleFloat32(in, 16000, 0); len(got) != len(in) {
		t.Errorf("zero dstRate: expected passthrough, got %d samples", len(got))
	}
}

func TestFloat32ToPCM16_Clamps(t *testing.T) {
	pcm := audio.Float32ToPCM16([]float32{0, 2, -2, 0.5})
	if len(pcm) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(pcm))
	}
	got := make([]int16, 4)
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	want := []int16{0, 32767, -32768, 16383}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFormat_String(t *testing.T) {
	tests := []struct {
		f    audio.Format
		want string
	}{
		{audio.Format{SampleRate: 44100, Channels: 1}, "44100Hz mono"},
		{audio.Format{SampleRate: 48000, Channels: 2}, "48000Hz stereo"},
		{audio.Format{SampleRate: 16000, Channels: 6}, "16000Hz 6ch"},
	}
	for _, tc := range tests {
		if got := tc.f.String(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}
