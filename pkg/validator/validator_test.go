package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"gte=18"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Username: "alice",
		Email:    "alice@example.com",
		Age:      20,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Username: "",
		Email:    "invalid",
		Age:      10,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundEmail := false
	for _, v := range vErrs {
		if v.Field == "email" {
			foundEmail = true
		}
	}

	if !foundEmail {
		t.Fatal("expected email field to be present in validation errors")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("authapp", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "authapp"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"authapp"`
	}

	if err := ValidateStruct(custom{Value: "authapp"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	type tokenPayload struct {
		RefreshToken string `json:"refreshToken" validate:"required,notblank"`
	}

	err := ValidateStruct(tokenPayload{RefreshToken: "   "})
	vErrs, ok := err.(ValidationErrors)
	if !ok || len(vErrs) != 1 {
		t.Fatalf("expected a single validation error, got %v", err)
	}
	if vErrs[0].Field != "refreshToken" || vErrs[0].Tag != "notblank" {
		t.Fatalf("unexpected failure: %+v", vErrs[0])
	}

	if err := ValidateStruct(tokenPayload{RefreshToken: "abc"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAccountFieldRules(t *testing.T) {
	type profile struct {
		Username  string  `json:"username" validate:"required,username"`
		BirthYear *string `json:"birthYear" validate:"omitempty,birthyear"`
	}
	year := func(v string) *string { return &v }

	valid := []profile{
		{Username: "alice"},
		{Username: "alice.b-2_x", BirthYear: year("1990")},
	}
	for _, p := range valid {
		if err := ValidateStruct(p); err != nil {
			t.Fatalf("expected %+v to pass, got %v", p, err)
		}
	}

	invalid := map[string]struct {
		payload profile
		field   string
		tag     string
	}{
		"space in username":  {profile{Username: "alice b"}, "username", "username"},
		"symbol in username": {profile{Username: "alice!"}, "username", "username"},
		"hangul username":    {profile{Username: "앨리스"}, "username", "username"},
		"short year":         {profile{Username: "alice", BirthYear: year("90")}, "birthYear", "birthyear"},
		"long year":          {profile{Username: "alice", BirthYear: year("19999")}, "birthYear", "birthyear"},
		"word year":          {profile{Username: "alice", BirthYear: year("abcd")}, "birthYear", "birthyear"},
	}
	for name, tc := range invalid {
		t.Run(name, func(t *testing.T) {
			vErrs, ok := ValidateStruct(tc.payload).(ValidationErrors)
			if !ok || len(vErrs) != 1 {
				t.Fatalf("expected a single validation error, got %v", vErrs)
			}
			if vErrs[0].Field != tc.field || vErrs[0].Tag != tc.tag {
				t.Fatalf("unexpected failure: %+v", vErrs[0])
			}
		})
	}
}
