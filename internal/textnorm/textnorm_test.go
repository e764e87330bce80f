package textnorm_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/voiceid/internal/textnorm"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "blank", in: " \t\n ", want: ""},
		{name: "plain arabic", in: "مرحبا", want: "مرحبا"},
		{name: "harakat stripped", in: "مَرْحَبًا", want: "مرحبا"},
		{name: "shadda and tatweel", in: "مـحمّد", want: "محمد"},
		{name: "whitespace collapsed", in: "  اهلا \t  وسهلا\n", want: "اهلا وسهلا"},
		{name: "case folded", in: "Hello  WORLD", want: "hello world"},
		{name: "non-breaking space", in: "كتاب\u00a0جديد", want: "كتاب جديد"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := textnorm.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"مَرْحَبًا يا  سارة", "  Hello  ", "كِتَابٌ"} {
		once := textnorm.Normalize(in)
		if twice := textnorm.Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestWords(t *testing.T) {
	t.Parallel()

	if got := textnorm.Words("   "); len(got) != 0 {
		t.Errorf("Words(blank) = %q, want no words", got)
	}

	got := textnorm.Words(" مَرحبا  يا سارة ")
	want := []string{"مرحبا", "يا", "سارة"}
	if !slices.Equal(got, want) {
		t.Errorf("Words = %q, want %q", got, want)
	}
}
