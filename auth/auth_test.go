package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "pingr/errors"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Str0ng&Secret!pass")
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	ok, err := ComparePassword("Str0ng&Secret!pass", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong-password-1!A", hash)
	req.NoError(err)
	req.False(ok)
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("Str0ng&Secret!pass")
	req.NoError(err)
	second, err := HashPassword("Str0ng&Secret!pass")
	req.NoError(err)

	req.NotEqual(first, second)
}

func TestComparePassword_MalformedHash(t *testing.T) {
	_, err := ComparePassword("whatever", "not-an-encoded-hash")
	require.Error(t, err)
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", time.Hour)
	req.NoError(err)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
}

func TestValidateToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("definitely.not.a-token")
	require.Error(t, err)
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  RegisterRequest{Email: "alice@example.com", FullName: "Alice Doe", Password: "Str0ng&Secret!pass"},
		},
		{
			name:    "missing email",
			req:     RegisterRequest{FullName: "Alice Doe", Password: "Str0ng&Secret!pass"},
			wantErr: true,
		},
		{
			name:    "not an email",
			req:     RegisterRequest{Email: "alice", FullName: "Alice Doe", Password: "Str0ng&Secret!pass"},
			wantErr: true,
		},
		{
			name:    "too short",
			req:     RegisterRequest{Email: "alice@example.com", FullName: "Alice Doe", Password: "Sh0rt!pw"},
			wantErr: true,
		},
		{
			name:    "no special character",
			req:     RegisterRequest{Email: "alice@example.com", FullName: "Alice Doe", Password: "Str0ngSecretpass1"},
			wantErr: true,
		},
		{
			name:    "no upper case",
			req:     RegisterRequest{Email: "alice@example.com", FullName: "Alice Doe", Password: "str0ng&secret!pass"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateRegister_ComplexityError(t *testing.T) {
	err := ValidateRegister(RegisterRequest{
		Email:    "alice@example.com",
		FullName: "Alice Doe",
		Password: "alllowercasepassword",
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidPassword)
}
