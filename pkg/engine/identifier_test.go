package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIdent(t *testing.T) {
	tests := []struct {
		name  string
		ident string
		ok    bool
	}{
		{"simple", "bronze_properties", true},
		{"single letter", "t", true},
		{"mixed case", "GoldProperties", true},
		{"digits after letter", "t2", true},
		{"max length 64", "a" + strings.Repeat("b", 63), true},
		{"empty", "", false},
		{"too long", "a" + strings.Repeat("b", 64), false},
		{"leading digit", "2fast", false},
		{"leading underscore", "_hidden", false},
		{"hyphen", "bronze-properties", false},
		{"space", "bronze properties", false},
		{"semicolon injection", "x; DROP TABLE y", false},
		{"quote injection", `x"y`, false},
		{"dot qualified", "main.properties", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdent(tt.ident)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidIdentifier))
			}
		})
	}
}
