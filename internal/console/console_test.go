package console

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestPrinter_Markers(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	p.Heading("🏗️ ", "Creating project directories...")
	p.Success("Created: %s/", "config")
	p.Failure("Error installing dependencies:")
	p.Warning("Setup interrupted by user.")
	p.Fatal("package.json not found!")

	assert.Equal(t,
		"🏗️  Creating project directories...\n"+
			"   ✅ Created: config/\n"+
			"   ❌ Error installing dependencies:\n"+
			"⚠️  Setup interrupted by user.\n"+
			"❌ package.json not found!\n",
		buf.String())
}

func TestPrinter_Indented(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\n", ""},
		{"single line", "npm ERR! code E404", "   npm ERR! code E404\n"},
		{"multi line trailing newline", "a\nb\n", "   a\n   b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf).Indented(tt.block)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPrinter_Rule(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Rule()
	assert.Len(t, buf.String(), ruleWidth+1)
}

// TestRunWithSpinner_NonTerminal verifies that f still runs and its error
// is returned when output is not a terminal.
func TestRunWithSpinner_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	called := false
	wantErr := errors.New("boom")
	err := p.RunWithSpinner("installing", func() error {
		called = true
		return wantErr
	})

	assert.True(t, called)
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, buf.String(), "no spinner frames on a non-terminal writer")
}

func TestDiscard(t *testing.T) {
	p := Discard()
	p.Success("ignored")
	assert.NoError(t, p.RunWithSpinner("x", func() error { return nil }))
}
