package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/appointment-service/internal/apperr"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)
	letterPattern  = regexp.MustCompile(`[A-Za-z]`)
	digitPattern   = regexp.MustCompile(`\d`)
)

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	InsuredID   string `json:"insuredId"`
	CountryCode string `json:"countryCode"`
}

// TokenSigner issues access tokens for authenticated users.
type TokenSigner interface {
	Issue(u *model.User) (string, time.Time, error)
}

// AuthService owns registration and login against the credential store.
type AuthService struct {
	users  repo.UserRepository
	tokens TokenSigner
	log    *zap.SugaredLogger
}

func NewAuthService(users repo.UserRepository, tokens TokenSigner, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: logger}
}

// Register validates in, rejects duplicates and stores a bcrypt hash of the password.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("user with this email already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.Storage(err, "lookup user")
	}
	if _, err := s.users.FindByInsuredID(ctx, in.InsuredID); err == nil {
		return nil, apperr.Conflict("user with this insured id already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.Storage(err, "lookup user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		InsuredID:    in.InsuredID,
		Email:        in.Email,
		Name:         in.Name,
		CountryCode:  model.CountryCode(in.CountryCode),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, apperr.Conflict("user already exists")
		}
		return nil, apperr.Storage(err, "create user")
	}
	s.log.Infow("user registered", "user_id", u.ID, "insured_id", u.InsuredID)
	return u, nil
}

// Authenticate returns the user whose password matches, or ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Storage(err, "lookup user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Login authenticates and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, time.Time, error) {
	var fields []apperr.FieldError
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "invalid email format"})
	}
	if password == "" {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password is required"})
	}
	if len(fields) > 0 {
		return nil, "", time.Time{}, apperr.Validation(fields...)
	}

	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return u, token, exp, nil
}

func validateRegistration(in RegisterInput) error {
	var fields []apperr.FieldError
	if !emailPattern.MatchString(in.Email) {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "invalid email format"})
	}
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required"})
	}
	if !model.CanonicalInsuredID(in.InsuredID) {
		fields = append(fields, apperr.FieldError{Field: "insuredId", Message: "insuredId must be exactly 5 digits"})
	}
	if !countryPattern.MatchString(in.CountryCode) {
		fields = append(fields, apperr.FieldError{Field: "countryCode", Message: "countryCode must be exactly 2 uppercase letters"})
	}
	if len(in.Password) < 8 || !letterPattern.MatchString(in.Password) || !digitPattern.MatchString(in.Password) {
		fields = append(fields, apperr.FieldError{
			Field:   "password",
			Message: "password must be at least 8 characters with at least one letter and one digit",
		})
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}
