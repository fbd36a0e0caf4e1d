package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Rule is a custom validation tag with its english message.
// A nil Func only overrides the message of a built-in tag.
type Rule struct {
	Tag  string
	Text string
	Func validator.Func
}

var usernameChars = regexp.MustCompile(`^[\w\s]+$`)

// rules shared by every app.
var rules = []Rule{
	{Tag: "alphanum_", Text: "only alphanumeric characters and underscores are allowed", Func: func(fl validator.FieldLevel) bool {
		return usernameChars.MatchString(fl.Field().String())
	}},
	{Tag: "notblank", Text: "this field cannot be blank", Func: func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	}},
	{Tag: "required", Text: "this field is required"},
	{Tag: "required_with", Text: "this field is required"},
}

// NewTranslator returns the english translator validation errors are rendered with.
func NewTranslator() ut.Translator {
	locale := en.New()
	translator, _ := ut.New(locale, locale).GetTranslator(locale.Locale())
	return translator
}

// NewValidator returns a validator reporting JSON field names, with the shared rules registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)
	validate.RegisterTagNameFunc(jsonName)
	RegisterRules(validate, translator, rules...)
	return validate
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// RegisterRules adds each rule's validation func and message. Messages of built-in tags are replaced.
func RegisterRules(validate *validator.Validate, translator ut.Translator, rs ...Rule) {
	for _, r := range rs {
		if r.Func != nil {
			_ = validate.RegisterValidation(r.Tag, r.Func)
		}
		registerText(validate, translator, r.Tag, r.Text, r.Func == nil)
	}
}

func registerText(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}
