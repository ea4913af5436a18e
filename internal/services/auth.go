package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ridehub/apiserver/internal/store"
	"github.com/ridehub/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const emailTakenMessage = "Email is already registered"

// Session is the result of a successful login.
type Session struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

// AuthService owns registration, login and current-user lookup.
type AuthService struct {
	users     UserRepository
	tokens    *TokenService
	validator *Validator
	logger    *zap.Logger
	hashCost  int
}

func NewAuthService(users UserRepository, tokens *TokenService, validator *Validator, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewValidator(nil)
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		validator: validator,
		logger:    logger.With(zap.String("component", "auth")),
		hashCost:  bcrypt.DefaultCost,
	}
}

// Register validates in, stores a new user with a bcrypt password hash and
// returns it. Every invalid field is reported in a single *ValidationError.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in = normalizeRegisterInput(in)
	if err := s.validator.Struct(in); err != nil {
		return types.User{}, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, &ValidationError{Fields: map[string]string{"email": emailTakenMessage}}
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := types.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         types.Role(in.Role),
		PasswordHash: string(hashed),
	}
	if user.Role == types.RoleDriver {
		user.Driver = &types.DriverInfo{
			LicenseNumber: strings.TrimSpace(in.LicenseNumber),
			VehicleModel:  strings.TrimSpace(in.VehicleModel),
			VehicleYear:   in.VehicleYear,
			LicensePlate:  strings.TrimSpace(in.LicensePlate),
		}
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, &ValidationError{Fields: map[string]string{"email": emailTakenMessage}}
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", created.ID), zap.String("role", string(created.Role)))
	return created, nil
}

// ValidateRegistration reports every rule that in violates, merged with extra
// field errors found while decoding the request. It returns nil when both
// are clean.
func (s *AuthService) ValidateRegistration(in RegisterInput, extra map[string]string) error {
	fields := map[string]string{}
	if err := s.validator.Struct(normalizeRegisterInput(in)); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		for field, msg := range verr.Fields {
			fields[field] = msg
		}
	}
	for field, msg := range extra {
		fields[field] = msg
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// Login checks the password of the account registered under email and
// issues a session token. An unknown email yields ErrNotFound and a wrong
// password ErrAuth.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "This field is required"
	}
	if password == "" {
		fields["password"] = "This field is required"
	}
	if len(fields) > 0 {
		return Session{}, &ValidationError{Fields: fields}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("password mismatch", zap.String("user_id", user.ID))
		return Session{}, ErrAuth
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

// IssueToken signs a fresh session token for user.
func (s *AuthService) IssueToken(user types.User) (string, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// VerifyToken resolves a session token to the identity it was issued for.
func (s *AuthService) VerifyToken(token string) (Identity, error) {
	return s.tokens.Verify(token)
}

// Authenticate verifies token and resolves it to an active account. A token
// whose account no longer exists is ErrTokenInvalid. The returned role is
// the account's current role, not the one signed into the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	identity, err := s.VerifyToken(token)
	if err != nil {
		return Identity{}, err
	}

	user, err := s.GetCurrentUser(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: account %s not found", ErrTokenInvalid, identity.UserID)
		}
		return Identity{}, fmt.Errorf("resolve account: %w", err)
	}
	return Identity{UserID: user.ID, Role: user.Role}, nil
}

func (s *AuthService) GetCurrentUser(ctx context.Context, id string) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies the provided fields of in to the user. Vehicle
// details can only be changed on driver accounts.
func (s *AuthService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (types.User, error) {
	trimPtr(in.FirstName)
	trimPtr(in.LastName)
	trimPtr(in.Phone)
	trimPtr(in.LicenseNumber)
	trimPtr(in.VehicleModel)
	trimPtr(in.LicensePlate)

	if err := s.validator.Struct(in); err != nil {
		return types.User{}, err
	}

	user, err := s.GetCurrentUser(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}

	if in.LicenseNumber != nil || in.VehicleModel != nil || in.VehicleYear != nil || in.LicensePlate != nil {
		if user.Role != types.RoleDriver || user.Driver == nil {
			return types.User{}, &ValidationError{Fields: map[string]string{"role": "Only drivers have vehicle details"}}
		}
		driver := *user.Driver
		if in.LicenseNumber != nil {
			driver.LicenseNumber = *in.LicenseNumber
		}
		if in.VehicleModel != nil {
			driver.VehicleModel = *in.VehicleModel
		}
		if in.VehicleYear != nil {
			driver.VehicleYear = *in.VehicleYear
		}
		if in.LicensePlate != nil {
			driver.LicensePlate = *in.LicensePlate
		}
		user.Driver = &driver
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func normalizeRegisterInput(in RegisterInput) RegisterInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	return in
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimPtr(value *string) {
	if value != nil {
		*value = strings.TrimSpace(*value)
	}
}
