package dto

import (
	"reflect"
	"regexp"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/money"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var referenceRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.:]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators adds the ledger-specific tags to v.
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("reference", validateReference)
	_ = v.RegisterValidation("currency", validateCurrency)
	_ = v.RegisterValidation("amount", validateAmount)
}

// validateReference allows alphanumeric, underscore, dash, dot and colon.
func validateReference(fl validator.FieldLevel) bool {
	return referenceRe.MatchString(fl.Field().String())
}

// validateCurrency accepts supported ISO-4217 codes in any case.
func validateCurrency(fl validator.FieldLevel) bool {
	return domain.IsValidCurrency(domain.NormalizeCurrency(fl.Field().String()))
}

// validateAmount accepts positive decimal strings with at most 4 fractional digits.
func validateAmount(fl validator.FieldLevel) bool {
	_, err := money.Parse(fl.Field().String())
	return err == nil
}

// SanitizeStruct trims surrounding whitespace from every exported string
// field (including *string) of a struct pointer. Values are stored as sent;
// the JSON encoder escapes HTML on the way out.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				s := sanitize(elem.String())
				elem.SetString(s)
			}
		}
	}
}

func sanitize(s string) string {
	return strings.TrimSpace(s)
}
