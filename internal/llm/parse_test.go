package llm

import (
	"errors"
	"testing"
)

const pageJSON = `{"productName":"Shelfie","tagline":"Inventory for tiny shops","painPoints":["Counting by hand"," "],"features":[{"title":"Scan","description":"Use your phone"},{"title":"","description":"dropped"}],"callToAction":""}`

func TestParsePage(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bare json", pageJSON},
		{"fenced json", "Here you go:\n```json\n" + pageJSON + "\n```\nEnjoy!"},
		{"fence without tag", "```\n" + pageJSON + "\n```"},
		{"prose around object", "Sure! " + pageJSON + " Let me know."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParsePage(tt.text)
			if err != nil {
				t.Fatalf("ParsePage returned error: %v", err)
			}
			if page.ProductName != "Shelfie" || page.Tagline != "Inventory for tiny shops" {
				t.Fatalf("unexpected page: %+v", page)
			}
			if len(page.PainPoints) != 1 || len(page.Features) != 1 {
				t.Fatalf("blank entries not dropped: %+v", page)
			}
			if page.CallToAction == "" {
				t.Fatal("expected default call to action")
			}
		})
	}
}

func TestParsePageRejects(t *testing.T) {
	for _, text := range []string{
		"",
		"I cannot help with that.",
		`{"productName":"","tagline":"x"}`,
		"```json\n{broken\n```",
	} {
		if _, err := ParsePage(text); !errors.Is(err, ErrNoPage) {
			t.Fatalf("ParsePage(%q) error = %v, want ErrNoPage", text, err)
		}
	}
}

func TestFallbackPageIsDeterministic(t *testing.T) {
	a := FallbackPage("  meal planning for busy parents.  ")
	b := FallbackPage("meal planning for busy parents.")
	if a.ProductName != b.ProductName || a.Tagline != b.Tagline {
		t.Fatalf("fallback differs: %+v vs %+v", a, b)
	}
	if a.ProductName != "Meal Planning For" {
		t.Fatalf("unexpected product name %q", a.ProductName)
	}
	if len(a.Features) != 3 || len(a.PainPoints) != 3 {
		t.Fatalf("fallback page incomplete: %+v", a)
	}
}

func TestFallbackPageEmptyIdea(t *testing.T) {
	for _, idea := range []string{"", "   ", "..."} {
		page := FallbackPage(idea)
		if page.ProductName != "Your product" {
			t.Errorf("FallbackPage(%q).ProductName = %q", idea, page.ProductName)
		}
		if page.Tagline != "Your idea, without the busywork." {
			t.Errorf("FallbackPage(%q).Tagline = %q", idea, page.Tagline)
		}
	}
	if got := FallbackPage("invoice chasing!").Tagline; got != "Invoice chasing, without the busywork." {
		t.Errorf("tagline = %q", got)
	}
}
