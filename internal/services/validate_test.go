package services

import "testing"

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Str0ngPass!", false},
		{"too short", "S0r!t", true},
		{"multibyte runes counted, not bytes", "Дд1!Aa", true},
		{"no uppercase", "str0ngpass!", true},
		{"no lowercase", "STR0NGPASS!", true},
		{"no digit", "StrongPass!", true},
		{"no symbol", "Str0ngPass1", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"valid", "john.doe", false},
		{"with digits", "john.doe2", false},
		{"no dot", "johndoe", true},
		{"empty", "", true},
		{"spaces", "john doe.x", true},
		{"illegal symbol", "john@doe", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUsername(tc.username)
			if tc.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("john.doe@example.com"); err != nil {
		t.Errorf("Expected valid email, got %v", err)
	}
	if err := ValidateEmail("not-an-email"); err == nil {
		t.Error("Expected error for malformed email")
	}
}
