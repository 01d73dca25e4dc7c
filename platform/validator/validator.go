// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxObjectKeyLen = 512

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the shared tags registered:
//
//	objectkey  a relative storage object path such as "requests/abc/photo.jpg"
func New() *Validator {
	v := validator.New()
	if err := v.RegisterValidation("objectkey", isObjectKey); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

func isObjectKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	if key == "" || len(key) > maxObjectKeyLen || strings.TrimSpace(key) != key {
		return false
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	cleaned := path.Clean(key)
	return cleaned == key && cleaned != "." && !strings.HasPrefix(cleaned, "..")
}
