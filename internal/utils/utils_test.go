package utils

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestToDBString(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantValid bool
	}{
		{"Empty", "", false},
		{"NonEmpty", "[\"junior\",\"senior\"]", true},
		{"Whitespace", " ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			str := ToDBString(tt.in)
			assert.Equal(t, tt.wantValid, str.Valid)
			assert.Equal(t, tt.in, str.String)
		})
	}
}
