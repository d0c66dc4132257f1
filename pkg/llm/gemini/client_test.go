package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("gemini-2.5-flash-lite", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewClientDefaultsModel(t *testing.T) {
	c, err := NewClient("", "test-key")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash-lite", c.model)
	assert.Equal(t, "gemini", c.Name())
}

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONBlock(tt.in))
		})
	}
}
