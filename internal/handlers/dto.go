package handlers

import (
	"time"

	iauth "github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/models"
)

// accountSummary is the user block embedded in login responses.
type accountSummary struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage,omitempty"`
	Provider     string `json:"provider"`
	Role         string `json:"role"`
}

// profileResponse is the public profile of one account.
type profileResponse struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username,omitempty"`
	Name         string    `json:"name"`
	Nickname     string    `json:"nickname,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	BirthYear    string    `json:"birthYear,omitempty"`
	Nationality  string    `json:"nationality,omitempty"`
	Address      string    `json:"address,omitempty"`
	Provider     string    `json:"provider"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// accountDetailResponse extends the profile with lifecycle fields.
type accountDetailResponse struct {
	profileResponse
	Active         bool       `json:"active"`
	Online         bool       `json:"online"`
	LastLoginAt    *time.Time `json:"lastLoginAt"`
	AnalysisCount  int        `json:"analysisCount"`
	LastAnalysisAt *time.Time `json:"lastAnalysisAt"`
}

type loginResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         accountSummary `json:"user"`
}

type tokenInfoResponse struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn"`
}

func newAccountSummary(account *models.Account) accountSummary {
	return accountSummary{
		ID:           account.ID,
		Email:        account.Email,
		Name:         account.Name,
		ProfileImage: models.Deref(account.ProfileImage),
		Provider:     account.ProviderLabel(),
		Role:         string(account.Role),
	}
}

func newProfileResponse(account *models.Account) profileResponse {
	return profileResponse{
		ID:           account.ID,
		Email:        account.Email,
		Username:     account.DisplayUsername(),
		Name:         account.Name,
		Nickname:     models.Deref(account.Nickname),
		ProfileImage: models.Deref(account.ProfileImage),
		Gender:       models.Deref(account.Gender),
		BirthYear:    models.Deref(account.BirthYear),
		Nationality:  models.Deref(account.Nationality),
		Address:      models.Deref(account.Address),
		Provider:     account.ProviderLabel(),
		Role:         string(account.Role),
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}
}

func newAccountDetailResponse(account *models.Account) accountDetailResponse {
	return accountDetailResponse{
		profileResponse: newProfileResponse(account),
		Active:          account.Active,
		Online:          account.Online,
		LastLoginAt:     account.LastLoginAt,
		AnalysisCount:   account.AnalysisCount,
		LastAnalysisAt:  account.LastAnalysisAt,
	}
}

func newLoginResponse(session *iauth.Session) loginResponse {
	return loginResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RenewalToken,
		User:         newAccountSummary(session.Account),
	}
}

func newTokenInfoResponse(info *iauth.TokenInfo) tokenInfoResponse {
	return tokenInfoResponse{
		AccessToken:           info.AccessToken,
		RefreshToken:          info.RefreshToken,
		AccessTokenExpiresIn:  info.AccessTokenExpiresIn,
		RefreshTokenExpiresIn: info.RefreshTokenExpiresIn,
	}
}
