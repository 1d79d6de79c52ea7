package setup

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPrompter(strings.NewReader(input), &out), &out
}

func TestPrompt(t *testing.T) {
	p, out := newTestPrompter("  hello  \n")

	got, err := p.Prompt("Say something: ")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Contains(t, out.String(), "Say something: ")
}

func TestPrompt_EOF(t *testing.T) {
	p, _ := newTestPrompter("")

	_, err := p.Prompt("anything: ")
	require.Error(t, err)
}

func TestPromptWithDefault(t *testing.T) {
	t.Run("empty input uses default", func(t *testing.T) {
		p, out := newTestPrompter("\n")
		got, err := p.PromptWithDefault("Key path", "~/.ssh/id_ed25519")
		require.NoError(t, err)
		assert.Equal(t, "~/.ssh/id_ed25519", got)
		assert.Contains(t, out.String(), "[~/.ssh/id_ed25519]")
	})

	t.Run("explicit input wins", func(t *testing.T) {
		p, _ := newTestPrompter("/tmp/key\n")
		got, err := p.PromptWithDefault("Key path", "~/.ssh/id_ed25519")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/key", got)
	})
}

func TestPromptRequired(t *testing.T) {
	p, out := newTestPrompter("\n\nmyserver\n")

	got, err := p.PromptRequired("Name")
	require.NoError(t, err)
	assert.Equal(t, "myserver", got)
	assert.Contains(t, out.String(), "A value is required.")
}

func TestPromptInt(t *testing.T) {
	t.Run("empty input uses default", func(t *testing.T) {
		p, _ := newTestPrompter("\n")
		got, err := p.PromptInt("SSH port", 22)
		require.NoError(t, err)
		assert.Equal(t, 22, got)
	})

	t.Run("bad input is re-asked", func(t *testing.T) {
		p, out := newTestPrompter("abc\n2222\n")
		got, err := p.PromptInt("SSH port", 22)
		require.NoError(t, err)
		assert.Equal(t, 2222, got)
		assert.Contains(t, out.String(), "Not a number: abc")
	})
}

func TestPromptPassword_NonTerminalFallback(t *testing.T) {
	p, out := newTestPrompter("hunter2\n")

	got, err := p.PromptPassword("Password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
	assert.Contains(t, out.String(), "Password: ")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		expected   bool
	}{
		{"empty uses default no", "\n", false, false},
		{"empty uses default yes", "\n", true, true},
		{"y means yes", "y\n", false, true},
		{"yes means yes", "yes\n", false, true},
		{"uppercase accepted", "Y\n", false, true},
		{"n means no", "n\n", true, false},
		{"garbage means no", "maybe\n", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			got, err := p.Confirm("Proceed?", tt.defaultYes)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSelect(t *testing.T) {
	options := []string{"add", "edit", "delete"}

	t.Run("empty input selects first", func(t *testing.T) {
		p, out := newTestPrompter("\n")
		got, err := p.Select("Pick one", options)
		require.NoError(t, err)
		assert.Equal(t, 0, got)
		assert.Contains(t, out.String(), "1) add")
		assert.Contains(t, out.String(), "3) delete")
	})

	t.Run("numeric choice is one-based", func(t *testing.T) {
		p, _ := newTestPrompter("3\n")
		got, err := p.Select("Pick one", options)
		require.NoError(t, err)
		assert.Equal(t, 2, got)
	})

	t.Run("out-of-range is re-asked", func(t *testing.T) {
		p, out := newTestPrompter("9\n2\n")
		got, err := p.Select("Pick one", options)
		require.NoError(t, err)
		assert.Equal(t, 1, got)
		assert.Contains(t, out.String(), "Invalid choice: 9")
	})
}
