package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"materna-backend/patientctx"
)

// GenerateRequest is the body of POST /generate_report.
type GenerateRequest struct {
	PatientID   string             `json:"patient_id" validate:"required"`
	PatientData patientctx.Dataset `json:"patient_data" validate:"required,dive,keys,required,endkeys"`
}

// FieldError names one offending field of a rejected request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New()
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
	return v
}

// decodeRequest reads and validates the body. A nil error slice means the
// request is usable.
func decodeRequest(v *validator.Validate, body io.Reader) (GenerateRequest, []FieldError) {
	var req GenerateRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, []FieldError{decodeError(err)}
	}
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return req, []FieldError{{Field: "body", Message: err.Error()}}
		}
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fieldPath(fe.Namespace()), Message: message(fe)})
		}
		return req, out
	}
	return req, nil
}

func decodeError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return FieldError{Field: field, Message: fmt.Sprintf("expected %s, got %s", kindName(typeErr.Type), typeErr.Value)}
	case errors.As(err, &syntaxErr):
		return FieldError{Field: "body", Message: "malformed JSON"}
	case errors.Is(err, io.EOF):
		return FieldError{Field: "body", Message: "request body is empty"}
	}
	return FieldError{Field: "body", Message: err.Error()}
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Map, reflect.Struct, reflect.Pointer:
		return "object"
	case reflect.Slice:
		return "array"
	}
	return t.Kind().String()
}

// fieldPath drops the root struct name: GenerateRequest.patient_data[p1].lmp
// becomes patient_data[p1].lmp.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
