package normalize

import (
	"testing"
	"unicode/utf8"

	"github.com/nvoloshin/betfuse/internal/pkg/enums"
)

func TestName_FoldsDiacritics(t *testing.T) {
	n := New(Options{})

	tests := []struct {
		in   string
		want string
	}{
		{"Nový Zéland", "novy zeland"},
		{"Novy Zeland", "novy zeland"},
		{"São Paulo", "sao paulo"},
		{"Bayern München", "bayern munchen"},
		{"  Atlético   Madrid ", "atletico madrid"},
		{"K.S.K. Heist", "k s k heist"},
		{"", ""},
	}
	for _, tt := range tests {
		got := n.Name(tt.in)
		if got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestName_CountryTranslationBeforeFolding(t *testing.T) {
	n := New(Options{})

	tests := []struct {
		in   string
		want string
	}{
		{"Новая Зеландия", "new zealand"},
		{"New Zealand", "new zealand"},
		{"ГЕРМАНИЯ", "germany"},
		{"сша", "usa"},
	}
	for _, tt := range tests {
		got := n.Name(tt.in)
		if got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestName_SuffixStripping(t *testing.T) {
	n := New(Options{StripSuffixes: true, MinTokens: 1})

	tests := []struct {
		in   string
		want string
	}{
		{"Barcelona B", "barcelona"},
		{"Ajax U21", "ajax"},
		{"Dynamo Kyiv Reserves", "dynamo kyiv"},
		{"Arsenal Youth", "arsenal"},
		// Never strip below the minimum token count.
		{"Youth", "youth"},
		{"B", "b"},
	}
	for _, tt := range tests {
		got := n.Name(tt.in)
		if got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestName_SuffixStrippingDisabled(t *testing.T) {
	n := New(Options{})
	if got := n.Name("Barcelona B"); got != "barcelona b" {
		t.Errorf("Name with stripping off = %q, want %q", got, "barcelona b")
	}
}

func TestName_Idempotent(t *testing.T) {
	n := New(Options{StripSuffixes: true, MinTokens: 1})

	inputs := []string{
		"Nový Zéland", "Новая Зеландия", "Barcelona B", "K.S.K. Heist II",
		"FC Köln U19", "  spaced   out  name ", "natus vincere",
	}
	for _, in := range inputs {
		once := n.Name(in)
		twice := n.Name(once)
		if once != twice {
			t.Errorf("Name not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestSignificantTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"fc barcelona", []string{"barcelona"}},
		{"manchester united", []string{"manchester"}},
		{"natus vincere", []string{"natus", "vincere"}},
		{"a b c", nil},
	}
	for _, tt := range tests {
		got := SignificantTokens(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("SignificantTokens(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SignificantTokens(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestSport_Aliases(t *testing.T) {
	tests := []struct {
		in   string
		want enums.Sport
	}{
		{"hockey", enums.Hockey},
		{"Ice-Hockey", enums.Hockey},
		{"lol", enums.LOL},
		{"League of Legends", enums.LOL},
		{"CS:GO", enums.CS},
		{"soccer", enums.Football},
		// Unknown sports pass through, never dropped.
		{"korfball", enums.Sport("korfball")},
	}
	for _, tt := range tests {
		if got := Sport(tt.in); got != tt.want {
			t.Errorf("Sport(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func FuzzName(f *testing.F) {
	seeds := []string{
		"Nový Zéland", "Новая Зеландия", "K.S.K. Heist", "FC Köln U19",
		"\xff\xfe broken utf8", "ＮａｔｕｓＶｉｎｃｅｒｅ", "🔥 emoji team 🔥", "",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	n := New(Options{StripSuffixes: true, MinTokens: 1})
	f.Fuzz(func(t *testing.T, raw string) {
		got := n.Name(raw)
		if !utf8.ValidString(got) {
			t.Fatalf("Name(%q) produced invalid UTF-8: %q", raw, got)
		}
		if again := n.Name(got); again != got {
			t.Fatalf("Name not idempotent for %q: %q then %q", raw, got, again)
		}
	})
}
