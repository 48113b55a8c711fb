package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	forgotPasswordMessage     = "if the account exists, a reset token has been issued"
	emailUniqueConstraint     = "accounts_email_key"
)

// Service defines the credential operations exposed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Me(ctx context.Context, accountID uuid.UUID) (*users.AccountDTO, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, req ChangePasswordRequest) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type accountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindPublicByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByResetTokenHash(ctx context.Context, digest string, now time.Time) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetResetToken(ctx context.Context, id uuid.UUID, digest string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, id uuid.UUID, digest, hash string) (bool, error)
}

type tokenIssuer interface {
	Issue(accountID uuid.UUID) (pkgAuth.SessionToken, error)
}

type service struct {
	accounts accountRepository
	tokens   tokenIssuer
	password config.PasswordConfig
	reset    config.PasswordResetConfig
	logger   *logger.Logger
	now      func() time.Time

	// dummyHash is verified when no account hash exists so that unknown
	// emails cost the same as wrong passwords.
	dummyHash string
	verify    func(password, encoded string) (bool, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Accounts       accountRepository
	Tokens         tokenIssuer
	PasswordConfig config.PasswordConfig
	ResetConfig    config.PasswordResetConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

// NewService constructs the credential service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	dummyHash, err := security.HashPassword(uuid.NewString(), params.PasswordConfig)
	if err != nil {
		return nil, fmt.Errorf("build dummy password hash: %w", err)
	}
	return &service{
		accounts:  params.Accounts,
		tokens:    params.Tokens,
		password:  params.PasswordConfig,
		reset:     params.ResetConfig,
		logger:    params.Logger,
		now:       params.Now,
		dummyHash: dummyHash,
		verify:    security.VerifyPassword,
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}
	if err := s.checkPasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(req.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	account := &models.Account{
		Email:        &email,
		Phone:        trimmedPtr(req.Phone),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: &hash,
		Role:         enums.RoleMember,
		Provider:     enums.AuthProviderEmail,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err, emailUniqueConstraint) || db.IsUniqueViolation(err, "accounts.email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}

	ctx = s.logger.WithAccountID(ctx, account.ID.String())
	s.logger.Info(ctx, "account registered")

	return s.respond(account)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	account, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	s.upgradeHash(ctx, account, req.Password)

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	return s.respond(account)
}

func (s *service) Me(ctx context.Context, accountID uuid.UUID) (*users.AccountDTO, error) {
	account, err := s.accounts.FindPublicByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return users.FromModel(account), nil
}

func (s *service) ChangePassword(ctx context.Context, accountID uuid.UUID, req ChangePasswordRequest) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if !s.passwordMatches(account, req.CurrentPassword) {
		return pkgerrors.New(pkgerrors.CodeInvalidCredentials, "current password is incorrect")
	}
	if err := s.checkPasswordPolicy(req.NewPassword); err != nil {
		return err
	}
	hash, err := security.HashPassword(req.NewPassword, s.password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	s.logger.Info(s.logger.WithAccountID(ctx, account.ID.String()), "password changed")
	return nil
}

func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	resp := &ForgotPasswordResponse{Message: forgotPasswordMessage}
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	if !account.Provider.RequiresEmail() {
		return resp, nil
	}

	raw, digest, err := security.NewResetToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
	}
	expiresAt := s.now().UTC().Add(s.resetTTL())
	if err := s.accounts.SetResetToken(ctx, account.ID, digest, expiresAt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset token")
	}

	s.logger.Info(s.logger.WithAccountID(ctx, account.ID.String()), "password reset requested")
	if s.reset.ExposeToken {
		resp.ResetToken = &raw
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidToken, "reset token is invalid or expired")
	}
	if err := s.checkPasswordPolicy(req.NewPassword); err != nil {
		return err
	}

	digest := security.HashResetToken(req.Token)
	account, err := s.accounts.FindByResetTokenHash(ctx, digest, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeInvalidToken, "reset token is invalid or expired")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reset token")
	}

	hash, err := security.HashPassword(req.NewPassword, s.password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	consumed, err := s.accounts.ConsumeResetToken(ctx, account.ID, digest, hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset password")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeInvalidToken, "reset token is invalid or expired")
	}
	s.logger.Info(s.logger.WithAccountID(ctx, account.ID.String()), "password reset completed")
	return nil
}

// authenticate returns the same error for an unknown email, a wrong password
// and an account without a local password.
func (s *service) authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredentials, invalidCredentialsMessage)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.passwordMatches(nil, password)
			return nil, pkgerrors.New(pkgerrors.CodeInvalidCredentials, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	if !s.passwordMatches(account, password) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCredentials, invalidCredentialsMessage)
	}
	return account, nil
}

// upgradeHash rewrites legacy or weak hashes after a successful login. A
// failure here never fails the login.
func (s *service) upgradeHash(ctx context.Context, account *models.Account, password string) {
	if account.PasswordHash == nil || !security.NeedsRehash(*account.PasswordHash, s.password) {
		return
	}
	hash, err := security.HashPassword(password, s.password)
	if err == nil {
		err = s.accounts.UpdatePasswordHash(ctx, account.ID, hash)
	}
	ctx = s.logger.WithAccountID(ctx, account.ID.String())
	if err != nil {
		s.logger.Error(ctx, "password hash upgrade failed", err)
		return
	}
	s.logger.Info(ctx, "password hash upgraded")
}

func (s *service) respond(account *models.Account) (*AuthResponse, error) {
	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Account:   users.FromModel(account),
	}, nil
}

func (s *service) checkPasswordPolicy(password string) error {
	minLen := s.password.MinLength
	if minLen <= 0 {
		minLen = 8
	}
	if utf8.RuneCountInString(password) < minLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "password is too short").
			WithDetails(map[string]any{"field": "password", "min_length": minLen})
	}
	return nil
}

func (s *service) resetTTL() time.Duration {
	if s.reset.TokenTTL <= 0 {
		return time.Hour
	}
	return s.reset.TokenTTL
}

// passwordMatches always runs one hash verification, falling back to the
// dummy hash when the account has no password of its own.
func (s *service) passwordMatches(account *models.Account, password string) bool {
	if account == nil || account.PasswordHash == nil {
		_, _ = s.verify(password, s.dummyHash)
		return false
	}
	ok, err := s.verify(password, *account.PasswordHash)
	return err == nil && ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
