package validate

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/DivyPatel-31/coastwatch/internal/model"
)

type reportInput struct {
	Title    string  `json:"title" binding:"required"`
	Type     string  `json:"type" binding:"required,oneof=pollution erosion"`
	Latitude *string `json:"latitude" binding:"omitempty,latitude"`
}

func TestFields_Validation(t *testing.T) {
	t.Parallel()

	lat := "123.4"
	err := New().Struct(reportInput{Type: "flood", Latitude: &lat})
	got := Fields(err)
	want := map[string]string{
		"title":    "Required",
		"type":     "Must be one of: pollution, erosion",
		"latitude": "Invalid latitude",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d field errors, got %+v", len(want), got)
	}
	for _, fe := range got {
		if want[fe.Field] != fe.Message {
			t.Fatalf("field %q: expected %q, got %q", fe.Field, want[fe.Field], fe.Message)
		}
	}
}

func TestFields_Valid(t *testing.T) {
	t.Parallel()

	lat := "40.7128"
	if err := New().Struct(reportInput{Title: "Oil slick", Type: "pollution", Latitude: &lat}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
	if Fields(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestFields_DecodeErrors(t *testing.T) {
	t.Parallel()

	var dst struct {
		Unit string `json:"unit"`
	}
	typeErr := json.Unmarshal([]byte(`{"unit":5}`), &dst)
	syntaxErr := json.Unmarshal([]byte(`{"unit":`), &dst)

	cases := []struct {
		name  string
		err   error
		field string
	}{
		{"type", typeErr, "unit"},
		{"syntax", syntaxErr, "body"},
		{"eof", io.EOF, "body"},
		{"numeric", model.ErrNotNumber, "value"},
		{"other", errors.New("boom"), "body"},
	}
	for _, tc := range cases {
		got := Fields(tc.err)
		if len(got) != 1 || got[0].Field != tc.field {
			t.Fatalf("%s: expected field %q, got %+v", tc.name, tc.field, got)
		}
	}
}
