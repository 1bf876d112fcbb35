package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/digkill/LandingForge/internal/models"
)

var ErrNoPage = errors.New("no landing page json in model output")

// ParsePage extracts page content from model output. Models often wrap the object in
// prose or a markdown fence, so three candidates are tried in order: the whole text,
// the first fenced block, and the outermost brace span.
func ParsePage(text string) (*models.PageContent, error) {
	text = strings.TrimSpace(text)
	candidates := []string{text}
	if fenced, ok := fencedBlock(text); ok {
		candidates = append(candidates, fenced)
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	var lastErr error = ErrNoPage
	for _, candidate := range candidates {
		var page models.PageContent
		if err := json.Unmarshal([]byte(candidate), &page); err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrNoPage, err)
			continue
		}
		if err := normalize(&page); err != nil {
			lastErr = err
			continue
		}
		return &page, nil
	}
	return nil, lastErr
}

func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line, e.g. ```json
		if tag := strings.TrimSpace(rest[:nl]); !strings.HasPrefix(tag, "{") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func normalize(page *models.PageContent) error {
	page.ProductName = strings.TrimSpace(page.ProductName)
	page.Tagline = strings.TrimSpace(page.Tagline)
	page.CallToAction = strings.TrimSpace(page.CallToAction)
	if page.ProductName == "" || page.Tagline == "" {
		return fmt.Errorf("%w: missing productName or tagline", ErrNoPage)
	}

	points := page.PainPoints[:0]
	for _, p := range page.PainPoints {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}
	page.PainPoints = points

	features := page.Features[:0]
	for _, f := range page.Features {
		f.Title = strings.TrimSpace(f.Title)
		f.Description = strings.TrimSpace(f.Description)
		if f.Title != "" {
			features = append(features, f)
		}
	}
	page.Features = features

	if page.CallToAction == "" {
		page.CallToAction = "Get started"
	}
	return nil
}

// FallbackPage builds a deterministic page from the idea alone. It is served when the
// model is unavailable or too slow so a paid generation still returns something usable.
func FallbackPage(idea string) *models.PageContent {
	idea = strings.Join(strings.Fields(idea), " ")
	name := idea
	if words := strings.Fields(idea); len(words) > 3 {
		name = strings.Join(words[:3], " ")
	}
	name = titleCase(strings.TrimRight(name, ".,;:!?"))
	tagline := "Your idea, without the busywork."
	if trimmed := strings.TrimRight(idea, ".,;:!?"); trimmed != "" {
		tagline = fmt.Sprintf("%s, without the busywork.", capitalize(trimmed))
	}
	if name == "" {
		name = "Your product"
	}
	return &models.PageContent{
		ProductName: name,
		Tagline:     tagline,
		PainPoints: []string{
			"Doing it by hand takes hours every week",
			"Existing tools are complex and expensive",
			"Small mistakes cost real money",
		},
		Features: []models.Feature{
			{Title: "Set up in minutes", Description: "Start from a sensible default and adjust as you go."},
			{Title: "Built for your workflow", Description: "Fits the tools you already use."},
			{Title: "Clear results", Description: "See what changed and why at a glance."},
		},
		CallToAction: "Join the waitlist",
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
