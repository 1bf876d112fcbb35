package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/digkill/LandingForge/internal/llm"
	"github.com/digkill/LandingForge/internal/models"
)

const maxIdeaLength = 2000

type PageGenerator interface {
	GeneratePage(ctx context.Context, idea string) (*models.PageContent, error)
	Model() string
}

type GenerationService struct {
	log       *slog.Logger
	ledger    LedgerStore
	logs      GenerationLogStore
	generator PageGenerator
	cache     *expirable.LRU[string, models.PageContent]
	timeout   time.Duration
}

type GenerationResult struct {
	Content  models.PageContent `json:"content"`
	Fallback bool               `json:"fallback"`
	Cached   bool               `json:"cached"`
}

// NewGenerationService accepts a nil generator, in which case every page is the fallback.
func NewGenerationService(log *slog.Logger, ledger LedgerStore, logs GenerationLogStore, generator PageGenerator, memo *expirable.LRU[string, models.PageContent], timeout time.Duration) *GenerationService {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &GenerationService{
		log:       log,
		ledger:    ledger,
		logs:      logs,
		generator: generator,
		cache:     memo,
		timeout:   timeout,
	}
}

// Generate charges one credit, then produces a page. Once the credit is taken the
// caller always gets a page: model failures degrade to the deterministic fallback.
func (s *GenerationService) Generate(ctx context.Context, userID, idea string) (*GenerationResult, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, invalid("idea is required")
	}
	if utf8.RuneCountInString(idea) > maxIdeaLength {
		return nil, invalid("idea is longer than %d characters", maxIdeaLength)
	}

	ok, err := s.ledger.DeductOne(ctx, userID)
	if err != nil {
		return nil, storeErr("deduct credit", err)
	}
	if !ok {
		return nil, ErrCreditsRequired
	}

	key := strings.ToLower(strings.Join(strings.Fields(idea), " "))
	result := &GenerationResult{}
	if cached, hit := s.lookup(key); hit {
		result.Content = cached
		result.Cached = true
	} else {
		content, err := s.callModel(ctx, idea)
		if err != nil {
			s.log.Warn("page generation fell back", "user_id", userID, "err", err)
			content = llm.FallbackPage(idea)
			result.Fallback = true
		} else if s.cache != nil {
			s.cache.Add(key, *content)
		}
		result.Content = *content
	}

	model := "fallback"
	if s.generator != nil {
		model = s.generator.Model()
	}
	if err := s.logs.Record(ctx, &models.GenerationLog{UserID: userID, Model: model, Idea: idea, Fallback: result.Fallback}); err != nil {
		s.log.Error("failed to log generation", "err", err)
	}
	if err := s.ledger.IncrementGenerationCount(ctx, userID); err != nil {
		s.log.Error("failed to count generation", "user_id", userID, "err", err)
	}
	return result, nil
}

func (s *GenerationService) lookup(key string) (models.PageContent, bool) {
	if s.cache == nil {
		return models.PageContent{}, false
	}
	return s.cache.Get(key)
}

func (s *GenerationService) callModel(ctx context.Context, idea string) (*models.PageContent, error) {
	if s.generator == nil {
		return nil, llm.ErrNotConfigured
	}
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.generator.GeneratePage(genCtx, idea)
}
