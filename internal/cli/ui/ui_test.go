package ui

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"METHOD", "PATTERN", "NAME"}, &TableOptions{
		NoColor: true,
		Style: func(col int, cell string) *color.Color {
			if col == 0 {
				return MethodColor(cell)
			}
			return nil
		},
	})

	table.AddRow("GET", "/api/pets", "Pets.List")
	table.AddRow("DELETE", "/api/pets/{id}", "Pets.Delete")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "METHOD  PATTERN") {
		t.Errorf("unexpected header line %q", lines[0])
	}
	if !strings.Contains(lines[1], "─") {
		t.Errorf("expected separator, got %q", lines[1])
	}
	if strings.TrimRight(lines[2], " ") != "GET     /api/pets       Pets.List" {
		t.Errorf("unexpected row %q", lines[2])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("expected no escape codes with NoColor")
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, nil, nil).Render()
	if buf.Len() != 0 {
		t.Errorf("expected empty output, got %q", buf.String())
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Version", "1.0.0")
	kv.AddRow("Go", "go1.23")
	kv.Render()

	want := "Version: 1.0.0\nGo:      go1.23\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestFormatError(t *testing.T) {
	out := FormatError(ErrorOptions{
		Context:      "no route",
		Problem:      "No route matches /api/pet.",
		Suggestions:  []string{"/api/pets"},
		HelpCommands: []string{"List routes: a7router routes"},
		NoColor:      true,
	})

	for _, want := range []string{"NO ROUTE", "No route matches /api/pet.", "Did you mean: /api/pets?", "→ List routes"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestConfigError(t *testing.T) {
	out := ConfigError("server.port must be between 1 and 65535", true)
	if !strings.Contains(out, "CONFIGURATION ERROR") || !strings.Contains(out, "a7router.yaml") {
		t.Errorf("unexpected config error output:\n%s", out)
	}
}

func TestFormatSuccess(t *testing.T) {
	if got := FormatSuccess("done", true); got != "✓ done" {
		t.Errorf("expected %q, got %q", "✓ done", got)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"/api/pet", "/api/pets", 1},
		{"héllo", "hello", 1},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"/api/pets", "/api/pets/{id}", "/api/health", "/api/pets"}

	got := FindSimilar("/API/pet", candidates, nil)
	if !reflect.DeepEqual(got, []string{"/api/pets"}) {
		t.Errorf("unexpected suggestions %v", got)
	}

	got = FindSimilar("/API/pet", candidates, &FuzzyMatchOptions{CaseSensitive: true})
	if len(got) != 0 {
		t.Errorf("expected no case sensitive suggestions, got %v", got)
	}

	got = FindSimilar("/nothing/close", candidates, nil)
	if len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}
