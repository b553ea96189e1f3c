package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
)

func TestChunk_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t \n"} {
		got := Chunk(in, 100, 10)
		if got == nil || len(got) != 0 {
			t.Fatalf("Chunk(%q) = %#v, want empty non-nil slice", in, got)
		}
	}
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	got := Chunk("  Hello world.  ", 100, 10)
	want := []string{"Hello world."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// No terminator past the window midpoint: chunks end after the last space
// instead of mid-word.
func TestChunk_FallsBackToWhitespace(t *testing.T) {
	text := "The sky is blue. Water boils at 100 degrees. Paris is the capital of France."
	got := Chunk(text, 40, 5)
	want := []string{
		"The sky is blue. Water boils at 100",
		"100 degrees. Paris is the capital of",
		"l of France.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestChunk_PrefersSentenceTerminators(t *testing.T) {
	text := "Hello world. This is a test! Another one? Yes.\nNew line here and more text follows."
	got := Chunk(text, 20, 5)
	want := []string{
		"Hello world.",
		"orld. This is a",
		"is a test! Another",
		"ther one? Yes.",
		"Yes.\nNew line here",
		"here and more text",
		"text follows.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestChunk_NoBoundariesCutsAtSize(t *testing.T) {
	got := Chunk(strings.Repeat("a", 25), 10, 3)
	want := []string{"aaaaaaaaaa", "aaaaaaaaaa", "aaaaaaaaaa", "aaaa"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestChunk_LargeOverlapStillProgresses(t *testing.T) {
	// Shrunk windows shorter than the overlap must not rewind.
	got := Chunk("One. Two. Three. Four. Five. Six.", 12, 8)
	want := []string{"One. Two.", "ne. Two.", "Three.", "Four. Five.", "r. Five.", "Six."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestChunk_Properties(t *testing.T) {
	texts := []string{
		strings.Repeat("Lorem ipsum dolor sit amet. ", 80),
		strings.Repeat("word ", 500),
		strings.Repeat("x", 3333),
		"Zürich liegt am See. Über die Brücke gehen wir! Ja?\nGut.",
	}
	params := []struct{ size, overlap int }{{50, 0}, {50, 10}, {100, 99}, {7, 3}, {1000, 200}}

	for _, text := range texts {
		for _, p := range params {
			chunks := Chunk(text, p.size, p.overlap)
			if len(chunks) == 0 {
				t.Fatalf("size=%d overlap=%d: no chunks for non-empty text", p.size, p.overlap)
			}
			for _, c := range chunks {
				if utf8.RuneCountInString(c) > p.size {
					t.Fatalf("size=%d: chunk of %d runes", p.size, utf8.RuneCountInString(c))
				}
				if c == "" || c != strings.TrimSpace(c) {
					t.Fatalf("chunk not trimmed: %q", c)
				}
				if !strings.Contains(text, c) {
					t.Fatalf("chunk %q is not a span of the input", c)
				}
			}
			last := chunks[len(chunks)-1]
			if !strings.HasSuffix(strings.TrimSpace(text), last) {
				t.Fatalf("size=%d overlap=%d: last chunk %q does not reach the end", p.size, p.overlap, last)
			}
		}
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"default", Default(), true},
		{"zero overlap", Options{Size: 10, Overlap: 0}, true},
		{"zero size", Options{Size: 0, Overlap: 0}, false},
		{"overlap equals size", Options{Size: 10, Overlap: 10}, false},
		{"overlap exceeds size", Options{Size: 10, Overlap: 20}, false},
		{"negative overlap", Options{Size: 10, Overlap: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestOptions_Split(t *testing.T) {
	if _, err := (Options{Size: 5, Overlap: 5}).Split("abc"); err == nil {
		t.Fatal("expected error for overlap >= size")
	}
	got, err := Default().Split("A short document.")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(got) != 1 || got[0] != "A short document." {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestClean(t *testing.T) {
	in := "  Page\x00 one   text\t\there \n\n\n  second   line \r\n"
	want := "Page one text here\nsecond line"
	if got := Clean(in); got != want {
		t.Fatalf("Clean = %q, want %q", got, want)
	}
	if Clean("") != "" {
		t.Fatal("expected empty")
	}
}
