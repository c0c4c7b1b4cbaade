package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authapp/internal/services"
	appErrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/response"
)

const profileImageField = "profileImage"

// UserHandler serves the self-service profile endpoints.
type UserHandler struct {
	profiles *services.ProfileService
}

func NewUserHandler(profiles *services.ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

type updateProfileRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=100"`
	Nickname     *string `json:"nickname" validate:"omitempty,max=20"`
	ProfileImage *string `json:"profileImage" validate:"omitempty,max=500"`
	Gender       *string `json:"gender" validate:"omitempty,max=20"`
	BirthYear    *string `json:"birthYear" validate:"omitempty,birthyear"`
	Nationality  *string `json:"nationality" validate:"omitempty,max=50"`
	Address      *string `json:"address" validate:"omitempty,max=255"`
}

func (r updateProfileRequest) input() services.UpdateProfileInput {
	return services.UpdateProfileInput{
		Name:         r.Name,
		Nickname:     r.Nickname,
		ProfileImage: r.ProfileImage,
		Gender:       r.Gender,
		BirthYear:    r.BirthYear,
		Nationality:  r.Nationality,
		Address:      r.Address,
	}
}

// GET /api/users/profile
func (h *UserHandler) Profile(c *gin.Context) {
	principal, ok := currentAccount(c)
	if !ok {
		return
	}
	account, err := h.profiles.Get(requestContext(c), principal.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newProfileResponse(account))
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	account, err := h.profiles.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newProfileResponse(account))
}

// PUT /api/users/profile
//
// Accepts multipart/form-data (with an optional profileImage file) or a JSON body.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	principal, ok := currentAccount(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	var upload *services.Upload
	if isMultipart(c) {
		req = updateProfileRequest{
			Name:        optionalForm(c, "name"),
			Nickname:    optionalForm(c, "nickname"),
			Gender:      optionalForm(c, "gender"),
			BirthYear:   optionalForm(c, "birthYear"),
			Nationality: optionalForm(c, "nationality"),
			Address:     optionalForm(c, "address"),
		}
		var closeUpload func()
		var err error
		upload, closeUpload, err = formUpload(c, profileImageField)
		if err != nil {
			response.Error(c, err)
			return
		}
		defer closeUpload()
		if !validatePayload(c, &req) {
			return
		}
	} else if !bindAndValidate(c, &req) {
		return
	}

	in := req.input()
	in.Image = upload
	account, err := h.profiles.Update(requestContext(c), principal.ID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "profile updated", newProfileResponse(account))
}

// PUT /api/users/profile/basic
func (h *UserHandler) UpdateBasic(c *gin.Context) {
	principal, ok := currentAccount(c)
	if !ok {
		return
	}

	name := c.PostForm("name")
	image := c.PostForm(profileImageField)
	if name == "" {
		name = c.Query("name")
	}
	if image == "" {
		image = c.Query(profileImageField)
	}

	account, err := h.profiles.UpdateBasic(requestContext(c), principal.ID, name, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "profile updated", newProfileResponse(account))
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func optionalForm(c *gin.Context, key string) *string {
	value, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &value
}

// formUpload opens the named multipart file. A missing file yields a nil upload.
// The returned close func is always safe to call.
func formUpload(c *gin.Context, field string) (*services.Upload, func(), error) {
	noop := func() {}
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, appErrors.NewBadRequest("invalid multipart payload").WithInternal(err)
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, appErrors.Wrap(err, "failed to read upload")
	}
	return &services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, func() { _ = file.Close() }, nil
}
