package service

import (
	"context"
	"testing"
	"time"

	"github.com/richardliu001/appointment-service/internal/apperr"
	"github.com/richardliu001/appointment-service/internal/auth"
	"github.com/richardliu001/appointment-service/internal/logger"
	"github.com/richardliu001/appointment-service/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(t *testing.T) (*AuthService, *auth.TokenIssuer) {
	t.Helper()
	log, err := logger.NewLogger("error")
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer("test-signing-key-1234567890123456", "appointment-service", time.Hour)
	return NewAuthService(repo.NewMemoryUserRepository(), issuer, log), issuer
}

func validRegistration() RegisterInput {
	return RegisterInput{Email: "ana@example.com", Password: "secret123", Name: "Ana", InsuredID: "12345", CountryCode: "PE"}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, issuer := newTestAuthService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	got, token, _, err := svc.Login(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "12345", claims.InsuredID)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "ana@example.com", "wrong-pass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = svc.Login(ctx, "bob@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = svc.Login(ctx, "not-an-email", "")
	assert.Len(t, apperr.FieldsOf(err), 2)
}

func TestRegister_Conflicts(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	sameEmail := validRegistration()
	sameEmail.InsuredID = "54321"
	_, err = svc.Register(ctx, sameEmail)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	sameInsured := validRegistration()
	sameInsured.Email = "other@example.com"
	_, err = svc.Register(ctx, sameInsured)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t)

	tests := []struct {
		name  string
		mut   func(*RegisterInput)
		field string
	}{
		{"email", func(in *RegisterInput) { in.Email = "ana@" }, "email"},
		{"name", func(in *RegisterInput) { in.Name = " " }, "name"},
		{"insured id too short", func(in *RegisterInput) { in.InsuredID = "123" }, "insuredId"},
		{"country lowercase", func(in *RegisterInput) { in.CountryCode = "pe" }, "countryCode"},
		{"password no digit", func(in *RegisterInput) { in.Password = "onlyletters" }, "password"},
		{"password short", func(in *RegisterInput) { in.Password = "ab1" }, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mut(&in)
			_, err := svc.Register(context.Background(), in)
			require.True(t, apperr.Is(err, apperr.KindValidation))
			fields := apperr.FieldsOf(err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.field, fields[0].Field)
		})
	}
}
