package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/auth/providers"
	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/store"
	apperrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
	"github.com/charlesng35/authapp/pkg/metrics"
)

const maxUsernameLength = 50

// RegisterInput carries a local sign-up request.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Nickname        string
	Address         string
}

// Session is the result of a successful login.
type Session struct {
	AccessToken  string
	RenewalToken string
	Account      *models.Account
}

// TokenInfo is the result of a refresh. RefreshToken is the unchanged renewal token.
type TokenInfo struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresIn  int64
	RefreshTokenExpiresIn int64
}

// Service drives the account session lifecycle: registration, logins, refresh and logout.
type Service struct {
	accounts *store.Accounts
	renewals *RenewalService
	codec    *TokenCodec
	hasher   Hasher
	now      func() time.Time
	log      *zap.Logger
}

// NewService wires the auth service. A nil hasher defaults to bcrypt.
func NewService(accounts *store.Accounts, renewals *RenewalService, codec *TokenCodec, hasher Hasher) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("auth service: account store is required")
	}
	if renewals == nil {
		return nil, errors.New("auth service: renewal service is required")
	}
	if codec == nil {
		return nil, errors.New("auth service: token codec is required")
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Service{
		accounts: accounts,
		renewals: renewals,
		codec:    codec,
		hasher:   hasher,
		now:      codec.Now,
		log:      logger.WithModule("auth"),
	}, nil
}

// Codec exposes the token codec used by this service.
func (s *Service) Codec() *TokenCodec { return s.codec }

// Register creates a local account. It does not log the account in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	ctx = ensureContext(ctx)

	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to check email")
	}
	if exists {
		return nil, ErrEmailTaken
	}
	exists, err = s.accounts.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to check username")
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = username
	}

	account := &models.Account{
		Email:    email,
		Username: &username,
		Password: &hash,
		Name:     username,
		Nickname: &nickname,
		Address:  models.StringPtr(in.Address),
		Role:     models.RoleUser,
		Active:   true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.NewConflict("email or username is already taken").WithInternal(err)
		}
		return nil, apperrors.Wrap(err, "failed to create account")
	}

	s.log.Info("account registered", zap.Uint64("account_id", account.ID), zap.String("username", username))
	return account, nil
}

// LoginPassword authenticates a local account by email (when loginID contains "@") or username.
func (s *Service) LoginPassword(ctx context.Context, loginID, password string) (*Session, error) {
	ctx = ensureContext(ctx)
	loginID = strings.TrimSpace(loginID)

	var (
		account *models.Account
		err     error
	)
	if strings.Contains(loginID, "@") {
		account, err = s.accounts.FindByEmail(ctx, loginID)
	} else {
		account, err = s.accounts.FindByUsername(ctx, loginID)
	}
	if err != nil {
		s.recordAttempt("password", false)
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, apperrors.Wrap(err, "failed to load account")
	}

	if !account.IsLocal() {
		s.recordAttempt("password", false)
		return nil, ErrProviderAccount.WithMessage(fmt.Sprintf("use %s login for this account", account.ProviderLabel()))
	}
	if account.Password == nil || !s.hasher.Verify(*account.Password, password) {
		s.recordAttempt("password", false)
		return nil, ErrWrongPassword
	}
	if !account.Active {
		s.recordAttempt("password", false)
		return nil, ErrDisabledAccount
	}

	session, err := s.completeLogin(ctx, account)
	if err != nil {
		s.recordAttempt("password", false)
		return nil, err
	}
	s.recordAttempt("password", true)
	return session, nil
}

// LoginOAuth links or provisions the account behind a provider profile and logs it in.
// Accounts are keyed by (provider, subject); an existing account with the same email is never merged.
func (s *Service) LoginOAuth(ctx context.Context, registrationID string, attrs map[string]any) (*Session, error) {
	ctx = ensureContext(ctx)

	info, err := providers.Extract(registrationID, attrs)
	if err != nil {
		s.recordAttempt("oauth", false)
		if errors.Is(err, providers.ErrUnsupportedProvider) {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unsupported provider %q", registrationID))
		}
		return nil, apperrors.NewValidation("provider profile is incomplete").WithInternal(err)
	}
	if info.Email == "" {
		s.recordAttempt("oauth", false)
		return nil, ErrOAuthEmailRequired
	}

	account, err := s.accounts.FindByProviderAndSubject(ctx, info.Provider, info.ProviderID)
	switch {
	case err == nil:
		if err := s.refreshProfile(ctx, account, info); err != nil {
			s.recordAttempt("oauth", false)
			return nil, err
		}
	case errors.Is(err, store.ErrAccountNotFound):
		account, err = s.provision(ctx, info)
		if err != nil {
			s.recordAttempt("oauth", false)
			return nil, err
		}
	default:
		s.recordAttempt("oauth", false)
		return nil, apperrors.Wrap(err, "failed to load account")
	}

	if !account.Active {
		s.recordAttempt("oauth", false)
		return nil, ErrDisabledAccount
	}

	session, err := s.completeLogin(ctx, account)
	if err != nil {
		s.recordAttempt("oauth", false)
		return nil, err
	}
	s.recordAttempt("oauth", true)
	return session, nil
}

func (s *Service) refreshProfile(ctx context.Context, account *models.Account, info providers.UserInfo) error {
	var columns []string
	if info.Name != "" {
		account.Name = info.Name
		columns = append(columns, "name")
	}
	if info.ProfileImage != "" {
		image := info.ProfileImage
		account.ProfileImage = &image
		columns = append(columns, "profile_image")
	}
	if len(columns) == 0 {
		return nil
	}
	if err := s.accounts.Update(ctx, account, columns...); err != nil {
		return apperrors.Wrap(err, "failed to update account profile")
	}
	return nil
}

func (s *Service) provision(ctx context.Context, info providers.UserInfo) (*models.Account, error) {
	exists, err := s.accounts.ExistsByEmail(ctx, info.Email)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to check email")
	}
	if exists {
		s.log.Warn("provider login uses an email already registered to another account; accounts are not merged",
			zap.String("provider", info.Provider.String()),
			zap.String("email", info.Email))
	}

	username, err := s.uniqueUsername(ctx, usernameFromEmail(info.Email, s.now()))
	if err != nil {
		return nil, err
	}

	name := info.Name
	if name == "" {
		name = username
	}
	provider := info.Provider
	subject := info.ProviderID
	nickname := username

	account := &models.Account{
		Email:        info.Email,
		Username:     &username,
		Provider:     &provider,
		ProviderID:   &subject,
		Name:         name,
		Nickname:     &nickname,
		ProfileImage: models.StringPtr(info.ProfileImage),
		Role:         models.RoleUser,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.NewConflict("an account with this email already exists").WithInternal(err)
		}
		return nil, apperrors.Wrap(err, "failed to create account")
	}

	s.log.Info("provisioned provider account",
		zap.Uint64("account_id", account.ID),
		zap.String("provider", provider.String()),
		zap.String("username", username))
	return account, nil
}

func (s *Service) uniqueUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for suffix := 1; ; suffix++ {
		exists, err := s.accounts.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", apperrors.Wrap(err, "failed to check username")
		}
		if !exists {
			return candidate, nil
		}
		tail := strconv.Itoa(suffix)
		trimmed := base
		if len(trimmed)+len(tail) > maxUsernameLength {
			trimmed = trimmed[:maxUsernameLength-len(tail)]
		}
		candidate = trimmed + tail
	}
}

// usernameFromEmail takes the sanitised local part of email, or user<epoch-ms> when nothing usable remains.
func usernameFromEmail(email string, now time.Time) string {
	local, _, found := strings.Cut(email, "@")
	if found {
		if sanitised := sanitiseUsername(local); sanitised != "" {
			if len(sanitised) > maxUsernameLength {
				sanitised = sanitised[:maxUsernameLength]
			}
			return sanitised
		}
	}
	return "user" + strconv.FormatInt(now.UnixMilli(), 10)
}

func sanitiseUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".-_")
}

// completeLogin marks the account online and issues the session in one transaction,
// so a failed renewal write leaves the online flag untouched.
func (s *Service) completeLogin(ctx context.Context, account *models.Account) (*Session, error) {
	var session *Session
	err := s.accounts.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		account.LastLoginAt = &now
		account.Online = true
		if err := s.accounts.WithTx(tx).Update(ctx, account, "last_login_at", "is_online"); err != nil {
			return err
		}

		issued, err := s.issueSession(ctx, s.renewals.WithTx(tx), account)
		if err != nil {
			return err
		}
		session = issued
		return nil
	})
	if err != nil {
		account.Online = false
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(err, "failed to start session")
	}
	return session, nil
}

// IssueSession mints an access token and replaces the account's renewal credential.
func (s *Service) IssueSession(ctx context.Context, account *models.Account) (*Session, error) {
	return s.issueSession(ensureContext(ctx), s.renewals, account)
}

func (s *Service) issueSession(ctx context.Context, renewals *RenewalService, account *models.Account) (*Session, error) {
	access, err := s.codec.IssueAccess(account)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to issue access token")
	}
	record, err := renewals.Create(ctx, account)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to issue refresh token")
	}
	return &Session{AccessToken: access, RenewalToken: record.Token, Account: account}, nil
}

// Refresh exchanges a renewal token for a new access token. The renewal token is returned unchanged.
func (s *Service) Refresh(ctx context.Context, renewalToken string) (*TokenInfo, error) {
	access, _, err := s.renewals.RotateAccess(ensureContext(ctx), renewalToken)
	if err != nil {
		s.recordAttempt("refresh", false)
		switch {
		case errors.Is(err, ErrRenewalExpired):
			return nil, ErrExpiredRenewal
		case errors.Is(err, ErrRenewalNotFound), errors.Is(err, ErrRenewalInvalid):
			return nil, ErrInvalidRenewal
		case errors.Is(err, ErrAccountDisabled):
			return nil, ErrDisabledAccount
		default:
			return nil, apperrors.Wrap(err, "failed to refresh token")
		}
	}

	s.recordAttempt("refresh", true)
	return &TokenInfo{
		AccessToken:           access,
		RefreshToken:          renewalToken,
		AccessTokenExpiresIn:  int64(s.codec.AccessTTL() / time.Second),
		RefreshTokenExpiresIn: int64(s.codec.RenewalTTL() / time.Second),
	}, nil
}

// Logout revokes renewalToken and marks its owner offline. Unknown tokens are a successful no-op.
func (s *Service) Logout(ctx context.Context, renewalToken string) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(renewalToken) == "" {
		return nil
	}

	record, err := s.renewals.Find(ctx, renewalToken)
	if errors.Is(err, ErrRenewalNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to load refresh token")
	}
	return s.LogoutAccount(ctx, record.AccountID)
}

// LogoutAccount marks the account offline and deletes its renewal credential.
func (s *Service) LogoutAccount(ctx context.Context, accountID uint64) error {
	ctx = ensureContext(ctx)

	err := s.accounts.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.WithTx(tx).FindByID(ctx, accountID)
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
		case err != nil:
			return err
		default:
			account.Online = false
			if err := s.accounts.WithTx(tx).Update(ctx, account, "is_online"); err != nil {
				return err
			}
		}
		return s.renewals.WithTx(tx).RevokeForAccount(ctx, accountID)
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to log out")
	}
	s.log.Debug("account logged out", zap.Uint64("account_id", accountID))
	return nil
}

// Validate reports whether accessToken is an unexpired access token whose subject matches its email claim.
func (s *Service) Validate(accessToken string) bool {
	claims, err := s.codec.Parse(accessToken)
	if err != nil {
		return false
	}
	return claims.IsAccess() && claims.Subject == claims.Email
}

func (s *Service) recordAttempt(method string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	metrics.AuthAttempts.WithLabelValues(method, result).Inc()
}
