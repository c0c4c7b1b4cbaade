package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/models"
)

// Status narrows FindAll to active or inactive accounts.
type Status string

const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// sortColumns whitelists the sortable attributes exposed to admin search.
var sortColumns = map[string]string{
	"id":          "id",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"lastLoginAt": "last_login_at",
	"email":       "email",
	"username":    "username",
	"name":        "name",
}

// Filter describes the admin search criteria.
type Filter struct {
	Search string
	Status Status
}

// Page selects a zero-based page and ordering.
type Page struct {
	Number int
	Size   int
	SortBy string
	Desc   bool
}

// PageResult is one page of accounts plus totals.
type PageResult struct {
	Items      []models.Account
	Total      int64
	Number     int
	Size       int
	TotalPages int
}

// Accounts persists accounts through gorm.
type Accounts struct {
	db *gorm.DB
}

// NewAccounts constructs an account store.
func NewAccounts(db *gorm.DB) (*Accounts, error) {
	if db == nil {
		return nil, fmt.Errorf("account store: db is required")
	}
	return &Accounts{db: db}, nil
}

// WithTx returns a store bound to the supplied transaction.
func (s *Accounts) WithTx(tx *gorm.DB) *Accounts {
	return &Accounts{db: tx}
}

// DB exposes the underlying handle so callers can open transactions.
func (s *Accounts) DB() *gorm.DB {
	return s.db
}

func (s *Accounts) FindByID(ctx context.Context, id uint64) (*models.Account, error) {
	return s.take(ctx, "id = ?", id)
}

func (s *Accounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.take(ctx, "email = ?", normaliseEmail(email))
}

func (s *Accounts) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.take(ctx, "username = ?", strings.TrimSpace(username))
}

func (s *Accounts) FindByProviderAndSubject(ctx context.Context, provider models.Provider, subject string) (*models.Account, error) {
	return s.take(ctx, "provider = ? AND provider_id = ?", provider, subject)
}

func (s *Accounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "email = ?", normaliseEmail(email))
}

func (s *Accounts) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "username = ?", strings.TrimSpace(username))
}

func (s *Accounts) ExistsByProviderAndSubject(ctx context.Context, provider models.Provider, subject string) (bool, error) {
	return s.exists(ctx, "provider = ? AND provider_id = ?", provider, subject)
}

// FindAll pages through accounts matching the filter. Search is case-insensitive over name, email and username.
func (s *Accounts) FindAll(ctx context.Context, filter Filter, page Page) (*PageResult, error) {
	ctx = ensureContext(ctx)

	number := page.Number
	if number < 0 {
		number = 0
	}
	size := page.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	query := s.db.WithContext(ctx).Model(&models.Account{})
	switch filter.Status {
	case StatusActive:
		query = query.Where("active = ?", true)
	case StatusInactive:
		query = query.Where("active = ?", false)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(COALESCE(username, '')) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("account store: count accounts: %w", err)
	}

	column, ok := sortColumns[page.SortBy]
	if !ok {
		column = sortColumns["createdAt"]
	}
	direction := "ASC"
	if page.Desc {
		direction = "DESC"
	}

	var items []models.Account
	if err := query.
		Order(column + " " + direction).
		Order("id " + direction).
		Offset(number * size).
		Limit(size).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("account store: list accounts: %w", err)
	}

	return &PageResult{
		Items:      items,
		Total:      total,
		Number:     number,
		Size:       size,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

func (s *Accounts) CountAll(ctx context.Context) (int64, error) {
	return s.count(ctx, nil)
}

func (s *Accounts) CountOnline(ctx context.Context) (int64, error) {
	return s.count(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("is_online = ?", true) })
}

// CountActiveSince counts accounts whose last login is at or after since.
func (s *Accounts) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return s.count(ctx, func(q *gorm.DB) *gorm.DB { return q.Where("last_login_at >= ?", since) })
}

// CountCreatedBetween counts accounts created in [from, to).
func (s *Accounts) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.count(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("created_at >= ? AND created_at < ?", from, to)
	})
}

// Create inserts a new account. Email is normalised to lower case.
func (s *Accounts) Create(ctx context.Context, account *models.Account) error {
	account.Email = normaliseEmail(account.Email)
	if !account.Role.Valid() {
		account.Role = models.RoleUser
	}
	if account.AnalysisCount < 0 {
		return fmt.Errorf("account store: analysis count must not be negative")
	}
	if err := s.db.WithContext(ensureContext(ctx)).Create(account).Error; err != nil {
		return translate(err)
	}
	return nil
}

// Update writes only the named columns plus updated_at.
func (s *Accounts) Update(ctx context.Context, account *models.Account, columns ...string) error {
	if account == nil || account.ID == 0 {
		return fmt.Errorf("account store: update requires a persisted account")
	}
	if len(columns) == 0 {
		return nil
	}
	columns = append(columns, "updated_at")
	res := s.db.WithContext(ensureContext(ctx)).
		Model(account).
		Select(columns).
		Updates(account)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *Accounts) Delete(ctx context.Context, account *models.Account) error {
	if account == nil || account.ID == 0 {
		return ErrAccountNotFound
	}
	res := s.db.WithContext(ensureContext(ctx)).Delete(&models.Account{}, account.ID)
	if res.Error != nil {
		return fmt.Errorf("account store: delete account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *Accounts) take(ctx context.Context, query string, args ...any) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ensureContext(ctx)).Where(query, args...).Take(&account).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *Accounts) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.Account{}).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Accounts) count(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.Account{})
	if scope != nil {
		query = scope(query)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("account store: count: %w", err)
	}
	return total, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
