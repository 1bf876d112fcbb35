package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/digkill/LandingForge/internal/models"
)

type SnapshotUploader interface {
	PutPage(ctx context.Context, page *models.LandingPage) (string, error)
}

type PageService struct {
	log       *slog.Logger
	ledger    LedgerStore
	pages     PageStore
	snapshots SnapshotUploader
	cache     *expirable.LRU[string, models.LandingPage]
	now       func() time.Time
}

func NewPageService(log *slog.Logger, ledger LedgerStore, pages PageStore, snapshots SnapshotUploader, shared *expirable.LRU[string, models.LandingPage]) *PageService {
	return &PageService{
		log:       log,
		ledger:    ledger,
		pages:     pages,
		snapshots: snapshots,
		cache:     shared,
		now:       time.Now,
	}
}

// Save charges one credit and stores a shareable copy of the page. The credit is
// returned if the page could not be stored.
func (s *PageService) Save(ctx context.Context, userID, idea string, content models.PageContent) (*models.LandingPage, error) {
	content.ProductName = strings.TrimSpace(content.ProductName)
	if content.ProductName == "" {
		return nil, invalid("content.productName is required")
	}

	ok, err := s.ledger.DeductOne(ctx, userID)
	if err != nil {
		return nil, storeErr("deduct credit", err)
	}
	if !ok {
		return nil, ErrCreditsRequired
	}

	page := &models.LandingPage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Slug:      newSlug(),
		Idea:      strings.TrimSpace(idea),
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if s.snapshots != nil {
		url, err := s.snapshots.PutPage(ctx, page)
		if err != nil {
			s.log.Warn("page snapshot upload failed", "slug", page.Slug, "err", err)
		} else {
			page.SnapshotURL = url
		}
	}

	if err := s.pages.Create(ctx, page); err != nil {
		if _, refundErr := s.ledger.AddCredits(ctx, userID, 1); refundErr != nil {
			s.log.Error("refund after failed save", "user_id", userID, "err", refundErr)
		}
		return nil, storeErr("create page", err)
	}
	if err := s.ledger.IncrementSaveCount(ctx, userID); err != nil {
		s.log.Error("failed to count save", "user_id", userID, "err", err)
	}
	if s.cache != nil {
		s.cache.Add(page.Slug, *page)
	}
	s.log.Info("page saved", "user_id", userID, "slug", page.Slug)
	return page, nil
}

func (s *PageService) Get(ctx context.Context, slug string) (*models.LandingPage, error) {
	if s.cache != nil {
		if page, ok := s.cache.Get(slug); ok {
			return &page, nil
		}
	}
	page, err := s.pages.GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeErr("get page", err)
	}
	if page == nil {
		return nil, ErrPageNotFound
	}
	if s.cache != nil {
		s.cache.Add(slug, *page)
	}
	return page, nil
}

func (s *PageService) ListForUser(ctx context.Context, userID string) ([]models.LandingPage, error) {
	pages, err := s.pages.ListByUser(ctx, userID, 50)
	if err != nil {
		return nil, storeErr("list pages", err)
	}
	return pages, nil
}

func newSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
