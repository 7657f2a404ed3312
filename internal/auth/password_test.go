package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		cost     int
		wantErr  error
	}{
		{
			name:     "valid password",
			password: "secure-password-123",
			cost:     bcrypt.MinCost,
			wantErr:  nil,
		},
		{
			name:     "minimum length password",
			password: strings.Repeat("a", MinPasswordLength),
			cost:     bcrypt.MinCost,
			wantErr:  nil,
		},
		{
			name:     "too short password",
			password: strings.Repeat("a", MinPasswordLength-1),
			cost:     bcrypt.MinCost,
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "empty password",
			password: "",
			cost:     bcrypt.MinCost,
			wantErr:  ErrPasswordTooShort,
		},
		{
			name:     "maximum length password",
			password: strings.Repeat("a", maxPasswordBytes),
			cost:     bcrypt.MinCost,
			wantErr:  nil,
		},
		{
			name:     "too long password",
			password: strings.Repeat("a", maxPasswordBytes+1),
			cost:     bcrypt.MinCost,
			wantErr:  ErrPasswordTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password, tt.cost)
			if err != tt.wantErr {
				t.Errorf("HashPassword() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr == nil {
				if hash == "" {
					t.Error("HashPassword() returned empty hash")
				}
				if hash == tt.password {
					t.Error("HashPassword() returned plaintext password")
				}
			}
		})
	}
}

func TestHashPassword_DifferentHashes(t *testing.T) {
	// Same password must produce different hashes (random salt)
	password := "same-password-123"
	hash1, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	hash2, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash1 == hash2 {
		t.Error("HashPassword() produced identical hashes for same password")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "correct-password-123"
	hash, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{
			name:     "correct password",
			password: password,
			hash:     hash,
			want:     true,
		},
		{
			name:     "wrong password",
			password: "wrong-password-456",
			hash:     hash,
			want:     false,
		},
		{
			name:     "empty password",
			password: "",
			hash:     hash,
			want:     false,
		},
		{
			name:     "empty hash",
			password: password,
			hash:     "",
			want:     false,
		},
		{
			name:     "malformed hash",
			password: password,
			hash:     "not-a-bcrypt-hash",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateAPIToken(t *testing.T) {
	token, hash, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("GenerateAPIToken() error = %v", err)
	}

	// 32 random bytes as hex
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if token == hash {
		t.Error("token and hash should differ")
	}

	// Hash must be reproducible from the plaintext token
	if HashToken(token) != hash {
		t.Error("HashToken(token) does not match returned hash")
	}

	// Tokens must be unique
	token2, _, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("GenerateAPIToken() error = %v", err)
	}
	if token == token2 {
		t.Error("GenerateAPIToken() produced duplicate tokens")
	}
}

func TestHashToken(t *testing.T) {
	// Deterministic
	h1 := HashToken("some-token")
	h2 := HashToken("some-token")
	if h1 != h2 {
		t.Error("HashToken() is not deterministic")
	}

	// Different inputs, different hashes
	if HashToken("some-token") == HashToken("other-token") {
		t.Error("HashToken() collision for different inputs")
	}

	// SHA-256 hex is 64 characters
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}

func TestGenerateSessionSecret(t *testing.T) {
	secret, err := GenerateSessionSecret()
	if err != nil {
		t.Fatalf("GenerateSessionSecret() error = %v", err)
	}
	if len(secret) != 64 {
		t.Errorf("secret length = %d, want 64", len(secret))
	}

	secret2, err := GenerateSessionSecret()
	if err != nil {
		t.Fatalf("GenerateSessionSecret() error = %v", err)
	}
	if secret == secret2 {
		t.Error("GenerateSessionSecret() produced duplicate secrets")
	}
}
