package validation

import (
	"strings"
	"testing"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/errors"
)

type descriptor struct {
	Name      string `json:"name" validate:"required"`
	Workers   int    `json:"workers" validate:"min=0"`
	ChunkSize int    `json:"chunk_size" validate:"min=0"`
}

func TestValidateStruct_Valid(t *testing.T) {
	d := descriptor{Name: "diff", Workers: 4, ChunkSize: 2}
	if err := ValidateStruct(d); err != nil {
		t.Errorf("valid struct rejected: %v", err)
	}
}

func TestValidateStruct_CollectsAllViolations(t *testing.T) {
	d := descriptor{Name: "", Workers: -1}
	err := ValidateStruct(d)
	if err == nil {
		t.Fatal("invalid struct accepted")
	}
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("got code %s, want %s", errors.CodeOf(err), errors.ErrCodeInvalidInput)
	}
	msg := err.Error()
	if !strings.Contains(msg, "name") || !strings.Contains(msg, "workers") {
		t.Errorf("expected both violations in message, got: %s", msg)
	}
}

func TestValidateStruct_JSONTagNames(t *testing.T) {
	d := descriptor{Name: "x", ChunkSize: -2}
	err := ValidateStruct(d)
	if err == nil {
		t.Fatal("invalid struct accepted")
	}
	if !strings.Contains(err.Error(), "chunk_size") {
		t.Errorf("expected json tag name in message, got: %s", err.Error())
	}
}

func TestValidator_Collects(t *testing.T) {
	v := New()
	v.Required("pattern", "").Min("workers", -1, 0).Max("workers", 99, 16)
	if !v.HasErrors() {
		t.Fatal("expected errors")
	}
	if len(v.Errors()) != 3 {
		t.Errorf("got %d errors, want 3", len(v.Errors()))
	}
	err := v.Error()
	if err == nil || !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidator_NoErrors(t *testing.T) {
	v := New()
	v.Required("pattern", "*.fits").Min("workers", 4, 0)
	if v.Error() != nil {
		t.Errorf("unexpected error: %v", v.Error())
	}
}

func TestValidator_OneOf(t *testing.T) {
	v := New().OneOf("environment", "qa", []string{"development", "staging", "production"})
	if !v.HasErrors() {
		t.Error("expected OneOf violation")
	}
	v = New().OneOf("environment", "staging", []string{"development", "staging", "production"})
	if v.HasErrors() {
		t.Errorf("unexpected errors: %v", v.Errors())
	}
}

func TestValidator_Custom(t *testing.T) {
	v := New().Custom(false, "steps", "pipeline needs at least one step")
	if !v.HasErrors() {
		t.Error("expected custom violation")
	}
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"ChunkSize":    "chunk_size",
		"Name":         "name",
		"PreviewCount": "preview_count",
	}
	for in, want := range cases {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%s) = %s, want %s", in, got, want)
		}
	}
}
