package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/store"
	apperrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// AdminStats summarises the account population for the dashboard.
// Analysis counters are reserved and always zero.
type AdminStats struct {
	TotalUsers          int64 `json:"totalUsers"`
	OnlineUsers         int64 `json:"onlineUsers"`
	RecentlyActiveUsers int64 `json:"recentlyActiveUsers"`
	NewUsersToday       int64 `json:"newUsersToday"`
	TotalAnalyses       int64 `json:"totalAnalyses"`
	AnalysesToday       int64 `json:"analysesToday"`
}

// AdminService implements the administrative account operations.
type AdminService struct {
	accounts *store.Accounts
	renewals *auth.RenewalService
	files    *FileStore
	now      func() time.Time
	log      *zap.Logger
}

// NewAdminService constructs an AdminService. files may be nil when uploads are disabled.
func NewAdminService(accounts *store.Accounts, renewals *auth.RenewalService, files *FileStore) (*AdminService, error) {
	if accounts == nil {
		return nil, errors.New("admin service: account store is required")
	}
	if renewals == nil {
		return nil, errors.New("admin service: renewal service is required")
	}
	return &AdminService{
		accounts: accounts,
		renewals: renewals,
		files:    files,
		now:      time.Now,
		log:      logger.WithModule("admin"),
	}, nil
}

// WithClock overrides the time source used for the stats windows.
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	if now != nil {
		s.now = now
	}
	return s
}

// GetStats counts total, online, recently active and today's new accounts.
func (s *AdminService) GetStats(ctx context.Context) (*AdminStats, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var (
		stats AdminStats
		err   error
	)
	if stats.TotalUsers, err = s.accounts.CountAll(ctx); err != nil {
		return nil, apperrors.Wrap(err, "failed to count users")
	}
	if stats.OnlineUsers, err = s.accounts.CountOnline(ctx); err != nil {
		return nil, apperrors.Wrap(err, "failed to count online users")
	}
	if stats.RecentlyActiveUsers, err = s.accounts.CountActiveSince(ctx, now.Add(-models.RecentActivityWindow)); err != nil {
		return nil, apperrors.Wrap(err, "failed to count active users")
	}
	if stats.NewUsersToday, err = s.accounts.CountCreatedBetween(ctx, startOfDay, startOfDay.AddDate(0, 0, 1)); err != nil {
		return nil, apperrors.Wrap(err, "failed to count new users")
	}

	s.log.Debug("computed admin stats",
		zap.Int64("total", stats.TotalUsers),
		zap.Int64("online", stats.OnlineUsers),
		zap.Int64("recently_active", stats.RecentlyActiveUsers))
	return &stats, nil
}

// ListUsers pages through accounts matching filter.
func (s *AdminService) ListUsers(ctx context.Context, filter store.Filter, page store.Page) (*store.PageResult, error) {
	result, err := s.accounts.FindAll(ctx, filter, page)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list users")
	}
	return result, nil
}

// GetUser loads one account.
func (s *AdminService) GetUser(ctx context.Context, id uint64) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load user")
	}
	return account, nil
}

// ToggleActive flips the account's active flag. Existing tokens stay signed but the
// request filter refuses them once the account is inactive.
func (s *AdminService) ToggleActive(ctx context.Context, id uint64) (*models.Account, error) {
	account, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	account.Active = !account.Active
	if err := s.accounts.Update(ctx, account, "active"); err != nil {
		return nil, apperrors.Wrap(err, "failed to update user status")
	}

	s.log.Info("toggled account status", zap.Uint64("account_id", id), zap.Bool("active", account.Active))
	return account, nil
}

// Delete removes the account and its renewal credential. The profile image is removed best-effort.
func (s *AdminService) Delete(ctx context.Context, id uint64) error {
	account, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	err = s.accounts.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.renewals.WithTx(tx).RevokeForAccount(ctx, account.ID); err != nil {
			return err
		}
		return s.accounts.WithTx(tx).Delete(ctx, account)
	})
	if errors.Is(err, store.ErrAccountNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to delete user")
	}

	s.removeImage(account)
	s.log.Info("deleted account", zap.Uint64("account_id", id))
	return nil
}

// UpdateProfileImage stores upload and points the account at it, replacing any previous image.
func (s *AdminService) UpdateProfileImage(ctx context.Context, id uint64, upload Upload) (*models.Account, error) {
	if s.files == nil {
		return nil, apperrors.NewBadRequest("file uploads are disabled")
	}
	account, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return replaceProfileImage(ctx, s.accounts, s.files, account, upload, s.log)
}

func (s *AdminService) removeImage(account *models.Account) {
	if s.files == nil || account.ProfileImage == nil {
		return
	}
	if err := s.files.Delete(account.ID, *account.ProfileImage); err != nil {
		s.log.Warn("failed to delete profile image", zap.Uint64("account_id", account.ID), zap.Error(err))
	}
}

// replaceProfileImage stores the new file first so a failed upload keeps the old image.
func replaceProfileImage(ctx context.Context, accounts *store.Accounts, files *FileStore, account *models.Account, upload Upload, log *zap.Logger) (*models.Account, error) {
	url, err := files.SaveProfileImage(account.ID, upload)
	if err != nil {
		return nil, err
	}

	previous := account.ProfileImage
	account.ProfileImage = &url
	if err := accounts.Update(ctx, account, "profile_image"); err != nil {
		_ = files.Delete(account.ID, url)
		return nil, apperrors.Wrap(err, "failed to update profile image")
	}

	if previous != nil && *previous != url {
		if err := files.Delete(account.ID, *previous); err != nil {
			log.Warn("failed to delete previous profile image", zap.Uint64("account_id", account.ID), zap.Error(err))
		}
	}
	return account, nil
}
