package moderation

import (
	"strings"
	"testing"
)

func TestNewFilter(t *testing.T) {
	f := NewFilter()
	if f == nil {
		t.Fatal("NewFilter returned nil")
	}
	if len(f.terms) != len(DefaultTerms) {
		t.Fatalf("NewFilter loaded %d terms, want %d", len(f.terms), len(DefaultTerms))
	}
}

func TestCheck_BlockedTerm(t *testing.T) {
	f := NewFilterWithTerms([]string{"badword", "offensive"})

	tests := []struct {
		name    string
		input   string
		blocked bool
		term    string
	}{
		{"exact match", "badword", true, "badword"},
		{"in sentence", "this is badword here", true, "badword"},
		{"upper case", "BADWORD", true, "badword"},
		{"mixed case", "BaDwOrD", true, "badword"},
		{"with punctuation", "hello, badword!", true, "badword"},
		{"prefix of longer word", "badwording is blocked too", true, "badword"},
		{"embedded substring", "mybadword", true, "badword"},
		{"second term", "so OFFENSIVE", true, "offensive"},
		{"clean message", "hello world", false, ""},
		{"split term", "bad word", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.input)
			if result.Blocked != tt.blocked {
				t.Errorf("Check(%q).Blocked = %v, want %v", tt.input, result.Blocked, tt.blocked)
			}
			if tt.blocked && result.Term != tt.term {
				t.Errorf("Check(%q).Term = %q, want %q", tt.input, result.Term, tt.term)
			}
			if tt.blocked && result.Reason != ReasonDenylist {
				t.Errorf("Check(%q).Reason = %q, want %q", tt.input, result.Reason, ReasonDenylist)
			}
		})
	}
}

func TestIsBlocked_DefaultDenylistAnyCasing(t *testing.T) {
	f := NewFilter()

	for _, term := range DefaultTerms {
		variants := []string{
			term,
			strings.ToUpper(term),
			strings.ToUpper(term[:1]) + term[1:],
			"prefix " + term + " suffix",
			"x" + strings.ToUpper(term) + "y",
		}
		for _, v := range variants {
			if !f.IsBlocked(v) {
				t.Errorf("IsBlocked(%q) = false, want true", v)
			}
		}
	}
}

func TestIsBlocked_Clean(t *testing.T) {
	f := NewFilter()

	messages := []string{
		"",
		"hello, how are you?",
		"offensive word 1",
		"offensiveword",
		"what is the quadratic formula?",
	}

	for _, msg := range messages {
		if f.IsBlocked(msg) {
			t.Errorf("IsBlocked(%q) = true, want false", msg)
		}
	}
}

func TestCheck_Empty(t *testing.T) {
	f := NewFilter()

	result := f.Check("")
	if result.Blocked || result.Term != "" || result.Reason != "" {
		t.Errorf("Check(\"\") = %+v, want zero value", result)
	}
}

func TestNewFilterWithTerms_Normalizes(t *testing.T) {
	f := NewFilterWithTerms([]string{"", "  ", " Valid ", "valid", "OTHER"})

	got := f.Terms()
	want := []string{"valid", "other"}
	if len(got) != len(want) {
		t.Fatalf("Terms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Terms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewFilterWithTerms_EmptyNeverBlocks(t *testing.T) {
	f := NewFilterWithTerms(nil)

	if f.IsBlocked("offensiveword1") {
		t.Error("filter with no terms blocked a message")
	}
}

func TestTerms_ReturnsCopy(t *testing.T) {
	f := NewFilterWithTerms([]string{"badword"})

	terms := f.Terms()
	terms[0] = "mutated"

	if !f.IsBlocked("badword") {
		t.Error("mutating Terms() result changed the filter")
	}
}

func BenchmarkCheck(b *testing.B) {
	f := NewFilter()
	msg := "can someone explain how to complete the square for quadratics again?"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Check(msg)
	}
}

func BenchmarkCheck_LongMessage(b *testing.B) {
	f := NewFilter()
	msg := strings.Repeat("this is a perfectly normal message with no bad content. ", 40)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Check(msg)
	}
}
