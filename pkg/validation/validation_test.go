package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"valid email with subdomain", "user@mail.example.com", false},
		{"empty email", "", true},
		{"invalid format", "invalid-email", true},
		{"missing @", "userexample.com", true},
		{"too long", strings.Repeat("a", 250) + "@example.com", true},
		{"valid with plus", "user+tag@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "host@example.com", NormalizeEmail("  Host@Example.COM "))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "secret1", false},
		{"minimum", "123456", false},
		{"too short", "12345", true},
		{"empty", "", true},
		{"maximum", strings.Repeat("a", 72), false},
		{"too long", strings.Repeat("a", 73), true},
		{"multibyte over byte limit", strings.Repeat("é", 40), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDisplayNameAndTitle(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("Olena"))
	assert.Error(t, ValidateDisplayName("   "))
	assert.Error(t, ValidateDisplayName(strings.Repeat("x", MaxNameLength+1)))
	// runes, not bytes
	assert.NoError(t, ValidateDisplayName(strings.Repeat("ї", MaxNameLength)))

	assert.NoError(t, ValidateSessionTitle("Weekly sync"))
	assert.Error(t, ValidateSessionTitle(""))
	assert.Error(t, ValidateSessionTitle(strings.Repeat("x", MaxTitleLength+1)))
}

func TestValidateSessionDescription(t *testing.T) {
	assert.NoError(t, ValidateSessionDescription(nil))
	assert.NoError(t, ValidateSessionDescription(strPtr("")))
	assert.Error(t, ValidateSessionDescription(strPtr(strings.Repeat("x", MaxDescriptionLength+1))))
}

func TestValidateLanguage(t *testing.T) {
	for _, lang := range []string{"EN", "UK", "DE"} {
		assert.NoError(t, ValidateLanguage(lang), lang)
	}
	assert.Error(t, ValidateLanguage(""))
	assert.Error(t, ValidateLanguage("en"))
	assert.Error(t, ValidateLanguage("FR"))
}

func TestValidateRole(t *testing.T) {
	assert.NoError(t, ValidateRole(nil))
	assert.NoError(t, ValidateRole(strPtr("HOST")))
	assert.NoError(t, ValidateRole(strPtr("CLIENT")))
	assert.Error(t, ValidateRole(strPtr("ADMIN")))
	assert.Error(t, ValidateRole(strPtr("")))
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID(uuid.NewString()))
	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("not-a-uuid"))
}
