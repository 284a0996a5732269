package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		username string
		want     error
		wantErr  bool
	}{
		{"mixed", "Password123!", "alice", nil, false},
		{"minimum length", "tr0ub4dr", "", nil, false},
		{"maximum length", strings.Repeat("z", 127) + "1", "", nil, false},
		{"multibyte counted as runes", "知乎赞乎知乎赞乎", "", nil, false},
		{"too short", "abc123", "", nil, true},
		{"too long", strings.Repeat("z", 129), "", nil, true},
		{"numeric", "8675309012", "", ErrPasswordNumeric, true},
		{"common", "Password123", "", ErrPasswordCommon, true},
		{"contains username", "gopher-rocks-2024", "Gopher", ErrPasswordSimilar, true},
		{"short username ignored", "ab-cdefgh1", "ab", nil, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePassword(tt.password, tt.username)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		username string
		wantErr  bool
	}{
		{"zanhu_dev", false},
		{"a-b", false},
		{"Gopher42", false},
		{"ab", true},
		{strings.Repeat("x", 31), true},
		{"user@zanhu", true},
		{"-leading", true},
		{"trailing_", true},
		{"has space", true},
		{"me", true},
		{"Admin", true},
		{"drafts", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.username, func(t *testing.T) {
			t.Parallel()
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	tooLong := strings.Repeat("a", 64) + "@" + strings.Repeat(strings.Repeat("b", 60)+".", 4) + "com"
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid", "test@example.com", false},
		{"Subdomain", "first.last+tag@mail.example.co", false},
		{"Too Long", tooLong, true},
		{"Invalid Format", "not-an-email", true},
		{"Missing Domain", "user@", true},
		{"Multiple At Symbols", "user@@example.com", true},
		{"Space In Local Part", "user @example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
