package providers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charlesng35/authapp/internal/models"
)

var (
	// ErrUnsupportedProvider is returned for registration ids outside the supported set.
	ErrUnsupportedProvider = errors.New("oauth: unsupported provider")
	// ErrIncompleteProfile is returned when the provider omitted the subject identifier.
	ErrIncompleteProfile = errors.New("oauth: provider profile is missing the subject id")
)

// UserInfo is a provider-agnostic view of an external profile.
type UserInfo struct {
	ProviderID   string
	Email        string
	Name         string
	ProfileImage string
	Provider     models.Provider
}

type extractor func(attrs map[string]any) UserInfo

// extractors holds one normalisation function per supported provider.
var extractors = map[models.Provider]extractor{
	models.ProviderGoogle: extractGoogle,
	models.ProviderNaver:  extractNaver,
}

// Extract normalises the raw attribute map returned by the provider named by registrationID.
func Extract(registrationID string, attrs map[string]any) (UserInfo, error) {
	provider, ok := models.ParseProvider(registrationID)
	if !ok {
		return UserInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, registrationID)
	}

	info := extractors[provider](attrs)
	info.Provider = provider
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	if strings.TrimSpace(info.ProviderID) == "" {
		return UserInfo{}, ErrIncompleteProfile
	}
	return info, nil
}

// extractGoogle reads the standard OIDC claims from the top-level map.
func extractGoogle(attrs map[string]any) UserInfo {
	return UserInfo{
		ProviderID:   stringValue(attrs, "sub"),
		Email:        stringValue(attrs, "email"),
		Name:         stringValue(attrs, "name"),
		ProfileImage: stringValue(attrs, "picture"),
	}
}

// extractNaver reads the profile nested under "response".
func extractNaver(attrs map[string]any) UserInfo {
	response, _ := attrs["response"].(map[string]any)
	return UserInfo{
		ProviderID:   stringValue(response, "id"),
		Email:        stringValue(response, "email"),
		Name:         stringValue(response, "name"),
		ProfileImage: stringValue(response, "profile_image"),
	}
}

func stringValue(claims map[string]any, key string) string {
	if claims == nil {
		return ""
	}
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}
