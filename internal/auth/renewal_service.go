package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/store"
	"github.com/charlesng35/authapp/pkg/logger"
	"github.com/charlesng35/authapp/pkg/metrics"
)

// RenewalService stores and validates renewal credentials. A credential is usable only
// while its row exists, its expiry has not passed and its JWT signature verifies.
type RenewalService struct {
	db    *gorm.DB
	codec *TokenCodec
	now   func() time.Time
	log   *zap.Logger
}

// NewRenewalService constructs a renewal manager backed by db. The codec supplies both the
// token lifetime and the clock.
func NewRenewalService(db *gorm.DB, codec *TokenCodec) (*RenewalService, error) {
	if db == nil {
		return nil, errors.New("renewal service: db is required")
	}
	if codec == nil {
		return nil, errors.New("renewal service: token codec is required")
	}
	return &RenewalService{
		db:    db,
		codec: codec,
		now:   codec.Now,
		log:   logger.WithModule("renewal"),
	}, nil
}

// WithTx returns a service bound to the supplied transaction.
func (s *RenewalService) WithTx(tx *gorm.DB) *RenewalService {
	cpy := *s
	cpy.db = tx
	return &cpy
}

// Create replaces any existing credential for the account with a freshly minted one.
// A concurrent creator can win the account_id unique index; the loser retries once.
func (s *RenewalService) Create(ctx context.Context, account *models.Account) (*models.RenewalToken, error) {
	if account == nil || account.ID == 0 {
		return nil, errors.New("renewal service: persisted account is required")
	}

	var (
		record *models.RenewalToken
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		record, err = s.create(ensureContext(ctx), account)
		if err == nil {
			metrics.RenewalTokens.WithLabelValues("issued").Inc()
			return record, nil
		}
		if !store.IsUniqueViolation(err) {
			break
		}
		s.log.Debug("renewal token insert raced, retrying", zap.Uint64("account_id", account.ID))
	}
	return nil, fmt.Errorf("renewal service: create: %w", err)
}

func (s *RenewalService) create(ctx context.Context, account *models.Account) (*models.RenewalToken, error) {
	var record *models.RenewalToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted := tx.Where("user_id = ?", account.ID).Delete(&models.RenewalToken{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected > 0 {
			metrics.RenewalTokens.WithLabelValues("revoked").Add(float64(deleted.RowsAffected))
		}

		token, expiresAt, err := s.codec.IssueRenewal(account)
		if err != nil {
			return err
		}

		record = &models.RenewalToken{
			Token:     token,
			AccountID: account.ID,
			ExpiresAt: expiresAt,
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Find looks a credential up by its exact token string.
func (s *RenewalService) Find(ctx context.Context, token string) (*models.RenewalToken, error) {
	if token == "" {
		return nil, ErrRenewalNotFound
	}
	var record models.RenewalToken
	err := s.db.WithContext(ensureContext(ctx)).Where("token = ?", token).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRenewalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("renewal service: find: %w", err)
	}
	return &record, nil
}

// Validate reports whether token is usable. Expired credentials are deleted before returning false.
func (s *RenewalService) Validate(ctx context.Context, token string) (bool, error) {
	_, err := s.check(ctx, token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRenewalNotFound), errors.Is(err, ErrRenewalExpired), errors.Is(err, ErrRenewalInvalid):
		return false, nil
	default:
		return false, err
	}
}

// RotateAccess mints a new access token for the credential owner. The renewal token itself is kept.
func (s *RenewalService) RotateAccess(ctx context.Context, token string) (string, *models.Account, error) {
	record, err := s.check(ctx, token)
	if err != nil {
		return "", nil, err
	}

	var account models.Account
	err = s.db.WithContext(ensureContext(ctx)).Take(&account, "id = ?", record.AccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrRenewalNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("renewal service: load account: %w", err)
	}
	if !account.Active {
		return "", nil, ErrAccountDisabled
	}

	access, err := s.codec.IssueAccess(&account)
	if err != nil {
		return "", nil, err
	}
	return access, &account, nil
}

// check returns the stored record when the credential is usable and purges it on discovered expiry.
func (s *RenewalService) check(ctx context.Context, token string) (*models.RenewalToken, error) {
	record, err := s.Find(ctx, token)
	if err != nil {
		return nil, err
	}

	if record.Expired(s.now()) {
		s.deleteRecord(ctx, record)
		return nil, ErrRenewalExpired
	}

	claims, err := s.codec.Parse(token)
	switch {
	case errors.Is(err, ErrTokenExpired):
		s.deleteRecord(ctx, record)
		return nil, ErrRenewalExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrRenewalInvalid, err)
	case claims.IsAccess() || claims.UserID != record.AccountID:
		return nil, ErrRenewalInvalid
	}
	return record, nil
}

func (s *RenewalService) deleteRecord(ctx context.Context, record *models.RenewalToken) {
	res := s.db.WithContext(ensureContext(ctx)).Delete(&models.RenewalToken{}, record.ID)
	if res.Error != nil {
		s.log.Warn("failed to delete expired renewal token", zap.Uint64("account_id", record.AccountID), zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		metrics.RenewalTokens.WithLabelValues("purged").Add(float64(res.RowsAffected))
	}
}

// Revoke deletes the credential matching token. Unknown tokens are ignored.
func (s *RenewalService) Revoke(ctx context.Context, token string) error {
	res := s.db.WithContext(ensureContext(ctx)).Where("token = ?", token).Delete(&models.RenewalToken{})
	if res.Error != nil {
		return fmt.Errorf("renewal service: revoke: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.RenewalTokens.WithLabelValues("revoked").Add(float64(res.RowsAffected))
	}
	return nil
}

// RevokeForAccount deletes any credential owned by the account.
func (s *RenewalService) RevokeForAccount(ctx context.Context, accountID uint64) error {
	res := s.db.WithContext(ensureContext(ctx)).Where("user_id = ?", accountID).Delete(&models.RenewalToken{})
	if res.Error != nil {
		return fmt.Errorf("renewal service: revoke for account: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.RenewalTokens.WithLabelValues("revoked").Add(float64(res.RowsAffected))
	}
	return nil
}

// PurgeExpired removes every credential whose expiry has passed and reports how many were deleted.
func (s *RenewalService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	var expired int64
	if err := s.db.WithContext(ctx).
		Model(&models.RenewalToken{}).
		Where("expires_at <= ?", now).
		Count(&expired).Error; err != nil {
		return 0, fmt.Errorf("renewal service: count expired tokens: %w", err)
	}
	if expired == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.RenewalToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("renewal service: purge expired tokens: %w", result.Error)
	}

	metrics.RenewalTokens.WithLabelValues("purged").Add(float64(result.RowsAffected))
	s.log.Info("purged expired renewal tokens", zap.Int64("count", result.RowsAffected))
	return result.RowsAffected, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
