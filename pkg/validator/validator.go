package validator

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate  *validator.Validate
	sanitizer *bluemonday.Policy

	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

func Init() {
	validate = validator.New()
	validate.SetTagName("binding")

	sanitizer = bluemonday.StrictPolicy()

	registerCustomValidations(validate)

	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustomValidations(engine)
	}
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("no_html", validateNoHTML)
	v.RegisterValidation("currency", validateCurrency)
}

func Validate(s interface{}) error {
	if validate == nil {
		Init()
	}
	return validate.Struct(s)
}

// SanitizeString strips every tag from admin-authored text and collapses whitespace.
func SanitizeString(s string) string {
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	return NormalizeSpaces(strings.TrimSpace(sanitizer.Sanitize(s)))
}

func NormalizeSpaces(s string) string {
	return spacePattern.ReplaceAllString(s, " ")
}

// IsCurrencyCode reports whether s looks like an ISO 4217 code, in either case.
func IsCurrencyCode(s string) bool {
	return currencyPattern.MatchString(strings.ToUpper(s))
}

func validateNoHTML(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return !strings.Contains(value, "<") && !strings.Contains(value, ">")
}

func validateCurrency(fl validator.FieldLevel) bool {
	return IsCurrencyCode(fl.Field().String())
}
