package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/middleware"
	appErrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/response"
)

// AuthHandler manages local authentication flows (signup/login/refresh/logout/validate/me).
type AuthHandler struct {
	service *iauth.Service
}

func NewAuthHandler(service *iauth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

type signupRequest struct {
	Username        string `json:"username" validate:"required,notblank,min=3,max=20,username"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=50"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	Nickname        string `json:"nickname" validate:"max=20"`
	Address         string `json:"address" validate:"max=255"`
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.service.Register(requestContext(c), iauth.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Nickname:        req.Nickname,
		Address:         req.Address,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "signup completed", newAccountDetailResponse(account))
}

// loginRequest accepts the identifier as loginId (email or username) or, for older clients, email.
type loginRequest struct {
	LoginID  string `json:"loginId"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

func (r loginRequest) identifier() string {
	if id := strings.TrimSpace(r.LoginID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Email)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	loginID := req.identifier()
	if loginID == "" {
		response.Error(c, appErrors.NewValidation("login id is required"))
		return
	}

	session, err := h.service.LoginPassword(requestContext(c), loginID, req.Password)
	if err != nil {
		response.Error(c, loginFailure(err))
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "login completed", newLoginResponse(session))
}

// loginFailure answers unknown accounts and wrong passwords with 400 and keeps the message.
func loginFailure(err error) error {
	appErr := appErrors.FromError(err)
	switch appErr.StatusCode {
	case http.StatusUnauthorized, http.StatusNotFound:
		return appErr.WithStatus(http.StatusBadRequest)
	default:
		return appErr
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,notblank"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	info, err := h.service.Refresh(requestContext(c), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "token refreshed", newTokenInfoResponse(info))
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// POST /api/auth/logout
//
// Revokes the supplied refresh token. Without one, the authenticated principal is logged out.
// Unknown tokens and anonymous calls succeed.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
			return
		}
	}

	ctx := requestContext(c)
	var err error
	if token := strings.TrimSpace(req.RefreshToken); token != "" {
		err = h.service.Logout(ctx, token)
	} else if account, ok := middleware.Principal(c); ok {
		err = h.service.LogoutAccount(ctx, account.ID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "logged out", nil)
}

// POST /api/auth/validate
func (h *AuthHandler) Validate(c *gin.Context) {
	token, ok := iauth.ExtractBearer(c.GetHeader("Authorization"))
	if !ok {
		response.SuccessWithMessage(c, http.StatusOK, "no token supplied", false)
		return
	}
	response.Success(c, http.StatusOK, h.service.Validate(token))
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, newAccountDetailResponse(account))
}
