package domain

import (
	"reflect"
	"testing"
)

func TestChangedFieldsFlattensNestedProperties(t *testing.T) {
	base := map[string]any{
		"name": "base",
		"metadata": map[string]any{
			"color": "red",
			"size":  float64(10),
		},
		"tags":   []any{"alpha", "beta"},
		"legacy": true,
	}
	target := map[string]any{
		"name": "base",
		"metadata": map[string]any{
			"color": "blue",
			"size":  float64(10),
		},
		"tags":  []any{"alpha", "gamma"},
		"extra": "value",
	}

	changed, err := ChangedFields(base, target)
	if err != nil {
		t.Fatalf("unexpected error diffing fields: %v", err)
	}

	expected := []string{"extra", "legacy", "metadata.color", "tags[1]"}
	if !reflect.DeepEqual(changed, expected) {
		t.Fatalf("expected changed fields %v, got %v", expected, changed)
	}
}

func TestChangedFieldsIgnoresListedKeys(t *testing.T) {
	base := map[string]any{"name": "a", "modified_at": "2024-01-01T00:00:00Z"}
	target := map[string]any{"name": "a", "modified_at": "2024-02-01T00:00:00Z"}

	changed, err := ChangedFields(base, target, "modified_at")
	if err != nil {
		t.Fatalf("unexpected error diffing fields: %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("expected no changed fields, got %v", changed)
	}
}

func TestChangedFieldsNilBase(t *testing.T) {
	changed, err := ChangedFields(nil, map[string]any{"b": 1, "a": nil})
	if err != nil {
		t.Fatalf("unexpected error diffing fields: %v", err)
	}
	expected := []string{"a", "b"}
	if !reflect.DeepEqual(changed, expected) {
		t.Fatalf("expected changed fields %v, got %v", expected, changed)
	}
}

func TestChangedFieldsEmptyContainers(t *testing.T) {
	base := map[string]any{"tags": []any{"x"}, "meta": map[string]any{"k": "v"}}
	target := map[string]any{"tags": []any{}, "meta": map[string]any{}}

	changed, err := ChangedFields(base, target)
	if err != nil {
		t.Fatalf("unexpected error diffing fields: %v", err)
	}
	expected := []string{"meta", "meta.k", "tags", "tags[0]"}
	if !reflect.DeepEqual(changed, expected) {
		t.Fatalf("expected changed fields %v, got %v", expected, changed)
	}
}
