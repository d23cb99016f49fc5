package objectkey

import (
	"strings"
	"testing"
)

func TestAudioKeyDeterministic(t *testing.T) {
	a := AudioKey(7, 3, "42", "wav")
	b := AudioKey(7, 3, "42", "wav")
	if a != b {
		t.Errorf("AudioKey not deterministic: %q != %q", a, b)
	}
	if want := "users/7/projects/3/audio/42.wav"; a != want {
		t.Errorf("AudioKey() = %q, want %q", a, want)
	}
}

func TestAudioKeyDefaultFormat(t *testing.T) {
	if got, want := AudioKey(1, 1, "v", ""), "users/1/projects/1/audio/v.wav"; got != want {
		t.Errorf("AudioKey() = %q, want %q", got, want)
	}
}

func TestKeysDistinctAcrossIdentities(t *testing.T) {
	keys := []string{
		VideoKey(7, 3, "a.mp4"),
		VideoKey(7, 3, "b.mp4"),
		VideoKey(7, 4, "a.mp4"),
		VideoKey(8, 3, "a.mp4"),
		AudioKey(7, 3, "42", "wav"),
		AudioKey(7, 3, "43", "wav"),
		ThumbnailKey(7, 3, "42"),
		ThumbnailKey(7, 3, "43"),
		SubtitleKey(7, 3, "42"),
		TranscriptKey(7, 3, "42"),
		SegmentKey(7, 3, "42", 0),
		SegmentKey(7, 3, "42", 1),
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
}

func TestSegmentKeyPadding(t *testing.T) {
	if got, want := SegmentKey(1, 2, "v", 7), "users/1/projects/2/splits/v/segment_007.wav"; got != want {
		t.Errorf("SegmentKey() = %q, want %q", got, want)
	}
}

func TestSliceKeyRandomized(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		k := SliceKey(7, 3, "part.mp4")
		if !strings.HasPrefix(k, "users/7/projects/3/slices/") {
			t.Fatalf("SliceKey() = %q, missing slices prefix", k)
		}
		if !strings.HasSuffix(k, "/part.mp4") {
			t.Fatalf("SliceKey() = %q, missing filename suffix", k)
		}
		if seen[k] {
			t.Fatalf("SliceKey collision after %d calls: %q", i, k)
		}
		seen[k] = true
	}
}
