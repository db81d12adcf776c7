package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var lettersRegex = regexp.MustCompile(`^[а-яА-Яa-zA-Z\-]+$`)

// ValidationError carries the 422 detail for a rejected request.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// Validator checks request bodies and renders failures as English messages
// keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewValidator() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("letters", func(fl validator.FieldLevel) bool {
		return lettersRegex.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")

	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}

	err := v.RegisterTranslation("letters", trans,
		func(ut ut.Translator) error {
			return ut.Add("letters", "{0} must contain only letters", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("letters", fe.Field())
			return t
		},
	)
	if err != nil {
		return nil, err
	}

	return &Validator{validate: v, trans: trans}, nil
}

// Struct validates s and returns a *ValidationError listing every failed field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fe.Translate(v.trans))
	}
	return &ValidationError{Detail: strings.Join(details, "; ")}
}

// DecodeRequest reads a JSON body into dst and validates it.
func (v *Validator) DecodeRequest(body io.Reader, dst interface{}) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}

	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &ValidationError{Detail: "request body is not valid JSON"}
	}
	return v.Struct(dst)
}

func decodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, io.EOF):
		return &ValidationError{Detail: "request body is required"}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &ValidationError{Detail: "request body is not valid JSON"}
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return &ValidationError{Detail: "request body must be a JSON object"}
		}
		return &ValidationError{Detail: fmt.Sprintf("%s must be of type %s", typeErr.Field, jsonTypeName(typeErr.Type))}
	default:
		return &ValidationError{Detail: "request body is not valid JSON"}
	}
}

func jsonTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	default:
		return t.String()
	}
}
