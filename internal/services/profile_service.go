package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/store"
	apperrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
)

// UpdateProfileInput lists the self-service profile fields. Nil fields are left untouched.
type UpdateProfileInput struct {
	Name         *string
	Nickname     *string
	ProfileImage *string
	Gender       *string
	BirthYear    *string
	Nationality  *string
	Address      *string
	Image        *Upload
}

// ProfileService lets an account read and edit its own profile.
type ProfileService struct {
	accounts *store.Accounts
	files    *FileStore
	log      *zap.Logger
}

// NewProfileService constructs a ProfileService. files may be nil when uploads are disabled.
func NewProfileService(accounts *store.Accounts, files *FileStore) (*ProfileService, error) {
	if accounts == nil {
		return nil, errors.New("profile service: account store is required")
	}
	return &ProfileService{
		accounts: accounts,
		files:    files,
		log:      logger.WithModule("profile"),
	}, nil
}

// Get loads an account by id.
func (s *ProfileService) Get(ctx context.Context, id uint64) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load user")
	}
	return account, nil
}

// Update applies the provided fields. A blank nickname falls back to the username, and an
// uploaded image takes precedence over a ProfileImage URL.
func (s *ProfileService) Update(ctx context.Context, id uint64, in UpdateProfileInput) (*models.Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.NewValidation("name must not be blank")
		}
		account.Name = name
		columns = append(columns, "name")
	}
	if in.Nickname != nil {
		nickname := strings.TrimSpace(*in.Nickname)
		if nickname == "" {
			nickname = account.DisplayUsername()
		}
		account.Nickname = models.StringPtr(nickname)
		columns = append(columns, "nickname")
	}
	if in.Gender != nil {
		account.Gender = models.StringPtr(*in.Gender)
		columns = append(columns, "gender")
	}
	if in.BirthYear != nil {
		account.BirthYear = models.StringPtr(*in.BirthYear)
		columns = append(columns, "birth_year")
	}
	if in.Nationality != nil {
		account.Nationality = models.StringPtr(*in.Nationality)
		columns = append(columns, "nationality")
	}
	if in.Address != nil {
		account.Address = models.StringPtr(*in.Address)
		columns = append(columns, "address")
	}
	if in.ProfileImage != nil && in.Image == nil {
		if s.files != nil && s.files.IsManaged(*in.ProfileImage) && !s.files.Owns(account.ID, *in.ProfileImage) {
			return nil, ErrForeignProfileImage
		}
		account.ProfileImage = models.StringPtr(*in.ProfileImage)
		columns = append(columns, "profile_image")
	}

	if len(columns) > 0 {
		if err := s.accounts.Update(ctx, account, columns...); err != nil {
			return nil, apperrors.Wrap(err, "failed to update profile")
		}
	}

	if in.Image != nil {
		if s.files == nil {
			return nil, apperrors.NewBadRequest("file uploads are disabled")
		}
		if account, err = replaceProfileImage(ctx, s.accounts, s.files, account, *in.Image, s.log); err != nil {
			return nil, err
		}
	}

	s.log.Info("profile updated", zap.Uint64("account_id", id), zap.Strings("fields", columns))
	return account, nil
}

// UpdateBasic sets the display name and profile image URL. Empty values are ignored.
func (s *ProfileService) UpdateBasic(ctx context.Context, id uint64, name, profileImage string) (*models.Account, error) {
	in := UpdateProfileInput{}
	if strings.TrimSpace(name) != "" {
		in.Name = &name
	}
	if strings.TrimSpace(profileImage) != "" {
		in.ProfileImage = &profileImage
	}
	return s.Update(ctx, id, in)
}
