// Package memory is a process-local implementation of every store. It backs the server
// when no database is configured and the service tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/digkill/LandingForge/internal/models"
	"github.com/digkill/LandingForge/internal/repository"
)

type Store struct {
	mu            sync.Mutex
	signupCredits int
	now           func() time.Time

	orders      map[string]*models.Order // by order_no
	ledger      map[string]*models.UserStats
	plans       map[int64]*models.Plan
	promos      map[int64]*models.PromoCode
	redemptions map[string]struct{}
	pages       map[string]*models.LandingPage // by slug
	logs        []models.GenerationLog

	nextPlanID  int64
	nextPromoID int64
	nextLogID   int64
}

func New(signupCredits int) *Store {
	return &Store{
		signupCredits: signupCredits,
		now:           time.Now,
		orders:        make(map[string]*models.Order),
		ledger:        make(map[string]*models.UserStats),
		plans:         make(map[int64]*models.Plan),
		promos:        make(map[int64]*models.PromoCode),
		redemptions:   make(map[string]struct{}),
		pages:         make(map[string]*models.LandingPage),
	}
}

func (s *Store) Orders() *Orders             { return &Orders{s} }
func (s *Store) Ledger() *Ledger             { return &Ledger{s} }
func (s *Store) Plans() *Plans               { return &Plans{s} }
func (s *Store) Promos() *Promos             { return &Promos{s} }
func (s *Store) Pages() *Pages               { return &Pages{s} }
func (s *Store) GenerationLogs() *Generation { return &Generation{s} }

// row returns the ledger row, creating it with the signup grant. Caller holds mu.
func (s *Store) row(userID string) *models.UserStats {
	st, ok := s.ledger[userID]
	if !ok {
		now := s.now().UTC()
		st = &models.UserStats{UserID: userID, RemainingCredits: s.signupCredits, CreatedAt: now, UpdatedAt: now}
		s.ledger[userID] = st
	}
	return st
}

func (s *Store) addCredits(userID string, amount int) int {
	st := s.row(userID)
	st.RemainingCredits += amount
	st.UpdatedAt = s.now().UTC()
	return st.RemainingCredits
}

// Orders implements service.OrderStore.
type Orders struct{ s *Store }

func (o *Orders) Create(_ context.Context, order *models.Order) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	now := o.s.now().UTC()
	cp := *order
	cp.CreatedAt, cp.UpdatedAt = now, now
	o.s.orders[order.OrderNo] = &cp
	order.CreatedAt, order.UpdatedAt = now, now
	return nil
}

func (o *Orders) GetByOrderNo(_ context.Context, orderNo string) (*models.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[orderNo]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (o *Orders) byID(id string) *models.Order {
	for _, order := range o.s.orders {
		if order.ID == id {
			return order
		}
	}
	return nil
}

func (o *Orders) SetCheckoutRef(_ context.Context, orderID, ref string) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if order := o.byID(orderID); order != nil {
		order.CheckoutRef = ref
		order.UpdatedAt = o.s.now().UTC()
	}
	return nil
}

func (o *Orders) MarkPaid(_ context.Context, orderID, providerOrderNo, providerResponse string) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order := o.byID(orderID)
	if order == nil || order.Status != models.OrderStatusPending {
		return false, nil
	}
	now := o.s.now().UTC()
	order.Status = models.OrderStatusPaid
	order.ProviderOrderNo = providerOrderNo
	order.ProviderResponse = providerResponse
	order.PaidAt = &now
	order.UpdatedAt = now
	return true, nil
}

func (o *Orders) MarkFailed(_ context.Context, orderID, providerResponse string) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order := o.byID(orderID)
	if order == nil || order.Status != models.OrderStatusPending {
		return false, nil
	}
	order.Status = models.OrderStatusFailed
	order.ProviderResponse = providerResponse
	order.UpdatedAt = o.s.now().UTC()
	return true, nil
}

func (o *Orders) ApplyCredits(_ context.Context, order *models.Order) (bool, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	stored := o.byID(order.ID)
	if stored == nil || stored.Status != models.OrderStatusPaid || stored.CreditsAppliedAt != nil {
		return false, nil
	}
	now := o.s.now().UTC()
	stored.CreditsAppliedAt = &now
	stored.UpdatedAt = now
	o.s.addCredits(stored.UserID, stored.Credits)
	return true, nil
}

func (o *Orders) ListUncredited(_ context.Context, paidBefore time.Time, limit int) ([]models.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var out []models.Order
	for _, order := range o.s.orders {
		if order.Status == models.OrderStatusPaid && order.CreditsAppliedAt == nil && order.PaidAt != nil && !order.PaidAt.After(paidBefore) {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(*out[j].PaidAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *Orders) ListByUser(_ context.Context, userID string, limit int) ([]models.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var out []models.Order
	for _, order := range o.s.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderNo > out[j].OrderNo
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ledger implements service.LedgerStore.
type Ledger struct{ s *Store }

func (l *Ledger) GetOrCreate(_ context.Context, userID string) (*models.UserStats, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	cp := *l.s.row(userID)
	return &cp, nil
}

func (l *Ledger) AddCredits(_ context.Context, userID string, amount int) (int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.addCredits(userID, amount), nil
}

func (l *Ledger) DeductOne(_ context.Context, userID string) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	st := l.s.row(userID)
	if st.RemainingCredits <= 0 {
		return false, nil
	}
	st.RemainingCredits--
	st.UpdatedAt = l.s.now().UTC()
	return true, nil
}

func (l *Ledger) IncrementGenerationCount(_ context.Context, userID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.row(userID).GenerationCount++
	return nil
}

func (l *Ledger) IncrementSaveCount(_ context.Context, userID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.row(userID).SaveCount++
	return nil
}

func (l *Ledger) GrantFollowBonus(_ context.Context, userID string, credits int) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	st := l.s.row(userID)
	if st.FollowBonusGranted {
		return false, nil
	}
	st.FollowBonusGranted = true
	l.s.addCredits(userID, credits)
	return true, nil
}

// Plans implements service.PlanStore.
type Plans struct{ s *Store }

func (p *Plans) GetByID(_ context.Context, id int64) (*models.Plan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	plan, ok := p.s.plans[id]
	if !ok {
		return nil, nil
	}
	cp := *plan
	return &cp, nil
}

func (p *Plans) sorted(activeOnly bool) []models.Plan {
	out := make([]models.Plan, 0, len(p.s.plans))
	for _, plan := range p.s.plans {
		if activeOnly && !plan.IsActive {
			continue
		}
		out = append(out, *plan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Plans) GetDefault(_ context.Context) (*models.Plan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	active := p.sorted(true)
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

func (p *Plans) List(_ context.Context) ([]models.Plan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.sorted(false), nil
}

func (p *Plans) ListActive(_ context.Context) ([]models.Plan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	active := p.sorted(true)
	sort.SliceStable(active, func(i, j int) bool { return active[i].PriceMinorUnits < active[j].PriceMinorUnits })
	return active, nil
}

func (p *Plans) Create(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.nextPlanID++
	now := p.s.now().UTC()
	cp := *plan
	cp.ID = p.s.nextPlanID
	cp.CreatedAt, cp.UpdatedAt = now, now
	p.s.plans[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (p *Plans) Update(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	existing, ok := p.s.plans[plan.ID]
	if !ok {
		return nil, nil
	}
	cp := *plan
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = p.s.now().UTC()
	p.s.plans[plan.ID] = &cp
	out := cp
	return &out, nil
}

func (p *Plans) Delete(_ context.Context, id int64) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	delete(p.s.plans, id)
	return nil
}

// Promos implements service.PromoStore.
type Promos struct{ s *Store }

func (p *Promos) GetByCode(_ context.Context, code string) (*models.PromoCode, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, promo := range p.s.promos {
		if strings.EqualFold(promo.Code, code) {
			cp := *promo
			return &cp, nil
		}
	}
	return nil, nil
}

func (p *Promos) GetByID(_ context.Context, id int64) (*models.PromoCode, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	promo, ok := p.s.promos[id]
	if !ok {
		return nil, nil
	}
	cp := *promo
	return &cp, nil
}

func (p *Promos) List(_ context.Context) ([]models.PromoCode, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := make([]models.PromoCode, 0, len(p.s.promos))
	for _, promo := range p.s.promos {
		out = append(out, *promo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (p *Promos) Create(_ context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.nextPromoID++
	cp := *promo
	cp.ID = p.s.nextPromoID
	cp.Uses = 0
	cp.CreatedAt = p.s.now().UTC()
	p.s.promos[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (p *Promos) Update(_ context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	existing, ok := p.s.promos[promo.ID]
	if !ok {
		return nil, nil
	}
	existing.Code, existing.MaxUses, existing.Uses = promo.Code, promo.MaxUses, promo.Uses
	out := *existing
	return &out, nil
}

func (p *Promos) Delete(_ context.Context, id int64) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	delete(p.s.promos, id)
	for key := range p.s.redemptions {
		if strings.HasSuffix(key, "\x00"+itoa(id)) {
			delete(p.s.redemptions, key)
		}
	}
	return nil
}

func (p *Promos) Redeem(_ context.Context, userID string, promoID int64, credits int) (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	promo, ok := p.s.promos[promoID]
	if !ok || promo.Uses >= promo.MaxUses {
		return 0, repository.ErrPromoExhausted
	}
	key := userID + "\x00" + itoa(promoID)
	if _, done := p.s.redemptions[key]; done {
		return 0, repository.ErrPromoAlreadyRedeemed
	}
	p.s.redemptions[key] = struct{}{}
	promo.Uses++
	return p.s.addCredits(userID, credits), nil
}

// Pages implements service.PageStore.
type Pages struct{ s *Store }

func (p *Pages) Create(_ context.Context, page *models.LandingPage) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	cp := *page
	p.s.pages[page.Slug] = &cp
	return nil
}

func (p *Pages) GetBySlug(_ context.Context, slug string) (*models.LandingPage, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	page, ok := p.s.pages[slug]
	if !ok {
		return nil, nil
	}
	cp := *page
	return &cp, nil
}

func (p *Pages) ListByUser(_ context.Context, userID string, limit int) ([]models.LandingPage, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []models.LandingPage
	for _, page := range p.s.pages {
		if page.UserID == userID {
			out = append(out, *page)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Generation implements service.GenerationLogStore.
type Generation struct{ s *Store }

func (g *Generation) Record(_ context.Context, entry *models.GenerationLog) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.nextLogID++
	cp := *entry
	cp.ID = g.s.nextLogID
	cp.CreatedAt = g.s.now().UTC()
	g.s.logs = append(g.s.logs, cp)
	return nil
}

// Entries returns a copy of the recorded generation logs.
func (g *Generation) Entries() []models.GenerationLog {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return append([]models.GenerationLog(nil), g.s.logs...)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
