// Package validate turns binding failures into the field-level error list
// returned with 400 responses.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Configure makes v report fields by their json names.
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// New returns a validator reading the same `binding` tags gin uses, for
// payloads that arrive outside HTTP (NSQ, MQTT).
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	Configure(v)
	return v
}

// Fields flattens err into per-field messages. Errors it does not recognise
// are reported against "body".
func Fields(err error) []FieldError {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return []FieldError{{Field: field, Message: fmt.Sprintf("Expected %s", typeErr.Type.String())}}
	}
	if errors.Is(err, model.ErrNotNumber) {
		return []FieldError{{Field: "value", Message: "Expected number"}}
	}
	if errors.Is(err, io.EOF) {
		return []FieldError{{Field: "body", Message: "Required"}}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return []FieldError{{Field: "body", Message: "Malformed JSON"}}
	}
	return []FieldError{{Field: "body", Message: err.Error()}}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "oneof":
		return "Must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "latitude":
		return "Invalid latitude"
	case "longitude":
		return "Invalid longitude"
	case "numeric":
		return "Expected a numeric string"
	case "url", "http_url":
		return "Invalid URL"
	case "email":
		return "Invalid email"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	default:
		return "Failed " + fe.Tag() + " validation"
	}
}
