package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestFormatterWithColor(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	color.NoColor = false

	result := Code.Sprint("syc file decrypt")
	if strings.Contains(result, "`") {
		t.Errorf("Code.Sprint should not contain backticks when color is enabled, got: %s", result)
	}
	if !strings.Contains(result, "\x1b[") {
		t.Errorf("Code.Sprint should contain ANSI escape codes when color is enabled, got: %s", result)
	}
}

func TestFormatterWithNoColor(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	tests := []struct {
		name      string
		formatter Formatter
		input     string
		want      string
	}{
		{"Code adds backticks", Code, "syc key generate", "`syc key generate`"},
		{"Path has no decoration", Path, "keys/alice@example.com.key", "keys/alice@example.com.key"},
		{"Success has no decoration", Success, "✓", "✓"},
		{"Error has no decoration", Error, "✗", "✗"},
		{"Info has no decoration", Info, "→", "→"},
		{"Highlight adds quotes", Highlight, "bob@example.com", "'bob@example.com'"},
		{"Value has no decoration", Value, "SYC1", "SYC1"},
		{"Muted adds parentheses", Muted, "pinned", "(pinned)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.formatter.Sprint(tt.input); got != tt.want {
				t.Errorf("%s.Sprint(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
			}
		})
	}
}

func TestFieldStaysGreppableWithoutColor(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	if got := Field("envelope magic", "SYC1"); got != "envelope magic: SYC1" {
		t.Errorf("Field() = %q", got)
	}
	if got := Field("sender", "alice@example.com"); got != "sender: alice@example.com" {
		t.Errorf("Field() = %q", got)
	}
}

func TestList(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	got := List([]string{"bob@example.com", "carol@example.com"})
	want := "    - 'bob@example.com'\n    - 'carol@example.com'\n"
	if got != want {
		t.Errorf("List() = %q, want %q", got, want)
	}
}

func TestEnsureNewline(t *testing.T) {
	if got := EnsureNewline("done"); got != "done\n" {
		t.Errorf("EnsureNewline() = %q", got)
	}
	if got := EnsureNewline("done\n"); got != "done\n" {
		t.Errorf("EnsureNewline() = %q", got)
	}
}

func TestNoColorFunction(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	if !noColor() {
		t.Error("noColor() should return true when NO_COLOR is set")
	}
	os.Unsetenv("NO_COLOR")

	originalNoColor := color.NoColor
	color.NoColor = true
	if !noColor() {
		t.Error("noColor() should return true when color.NoColor is true")
	}
	color.NoColor = originalNoColor
}
