package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/internal/domain/entity"
	repo "github.com/oksasatya/go-cantina-online/internal/domain/repository"
	"github.com/oksasatya/go-cantina-online/internal/metrics"
	"github.com/oksasatya/go-cantina-online/pkg/apperror"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
	"github.com/oksasatya/go-cantina-online/pkg/mailer"
	mailtpl "github.com/oksasatya/go-cantina-online/pkg/mailer/templates"
	"github.com/oksasatya/go-cantina-online/pkg/validation"
)

// ResetTokenTTL is how long a password reset link stays valid.
const ResetTokenTTL = time.Hour

// ForgotPasswordMessage is returned whether or not the email exists.
const ForgotPasswordMessage = "If the email is registered, a password reset link has been sent."

// Audit actions
const (
	ActionRegister             = "register"
	ActionLogin                = "login"
	ActionLoginFailed          = "login_failed"
	ActionRefresh              = "refresh"
	ActionProfileUpdate        = "profile_update"
	ActionPasswordResetRequest = "password_reset_request"
	ActionPasswordReset        = "password_reset"
)

var (
	ErrInvalidCredentials = apperror.Auth(apperror.ReasonInvalidCredentials, "invalid email or password")
	ErrMissingToken       = apperror.Auth(apperror.ReasonMissingToken, "refresh token missing")
	ErrInvalidOrExpired   = apperror.Auth(apperror.ReasonInvalidOrExpired, "token invalid or expired")
	ErrUserNotFound       = apperror.Auth(apperror.ReasonUserNotFound, "user not found")
	ErrEmailRegistered    = apperror.Conflict(apperror.ReasonEmailAlreadyRegistered, "email already registered")
	ErrEmailInUse         = apperror.Conflict(apperror.ReasonEmailInUse, "email already in use")
	ErrNoFieldsToUpdate   = apperror.Validation(apperror.ReasonNoFieldsToUpdate, "nothing to update")
	ErrInvalidEmail       = apperror.Validation(apperror.ReasonInvalidEmail, "invalid email")
	ErrInvalidResetToken  = apperror.Auth(apperror.ReasonInvalidResetToken, "reset token invalid or expired")
)

// RequestMeta describes the client of an auth call for auditing.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// AuthResult is returned by every operation that signs a user in.
type AuthResult struct {
	User   *entity.User
	Tokens TokenPair
}

type AuthService struct {
	Users     repo.UserRepository
	Resets    repo.PasswordResetRepository
	Audit     repo.AuditRepository
	JWT       *helpers.JWTManager
	Publisher mailer.Publisher // optional
	Logger    *logrus.Logger
	Brand     mailtpl.Brand
	ResetURL  string
	HashCost  int

	now func() time.Time
}

func NewAuthService(store repo.Store, jwt *helpers.JWTManager, pub mailer.Publisher, logger *logrus.Logger, brand mailtpl.Brand, resetURL string) *AuthService {
	return &AuthService{
		Users:     store.Users(),
		Resets:    store.PasswordResets(),
		Audit:     store.Audit(),
		JWT:       jwt,
		Publisher: pub,
		Logger:    logger,
		Brand:     brand,
		ResetURL:  resetURL,
		HashCost:  helpers.PasswordCost,
		now:       time.Now,
	}
}

func (s *AuthService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *AuthService) log() *logrus.Logger {
	if s.Logger == nil {
		return helpers.NewDiscardLogger()
	}
	return s.Logger
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,personname"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,pwd"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// invalidPayload renders validation failures with per-field details.
func invalidPayload(err error) *apperror.Error {
	return apperror.Validation(apperror.ReasonInvalidPayload, "invalid payload").WithDetails(validation.ToDetails(err))
}

// storeError maps an unexpected repository failure.
func storeError(err error) error {
	if errors.Is(err, repo.ErrUnavailable) {
		return apperror.Unavailable(apperror.ReasonStoreUnavailable, "store unavailable").Wrap(err)
	}
	return apperror.Internal(err)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, invalidPayload(err)
	}
	hash, err := helpers.HashPasswordCost(in.Password, s.HashCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	u := &entity.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.Users.Create(ctx, u); err != nil {
		metrics.RecordAuth(ActionRegister, false)
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, ErrEmailRegistered
		}
		return nil, storeError(err)
	}
	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, err
	}
	metrics.RecordAuth(ActionRegister, true)
	s.audit(ctx, u.ID, u.Email, ActionRegister, meta, nil)
	s.publish(ctx, &mailer.EmailJob{
		To:       u.Email,
		Template: mailtpl.Welcome,
		Data:     mailtpl.NewWelcomeData(s.Brand, u.Name, u.Email),
	})
	return &AuthResult{User: u, Tokens: pair}, nil
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login fails with the same error whether the email is unknown or the
// password is wrong.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta RequestMeta) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, invalidPayload(err)
	}
	u, err := s.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, storeError(err)
		}
		helpers.CompareDummy(in.Password)
		s.loginFailed(ctx, 0, in.Email, meta)
		return nil, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, in.Password) {
		s.loginFailed(ctx, u.ID, in.Email, meta)
		return nil, ErrInvalidCredentials
	}
	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, err
	}
	metrics.RecordAuth(ActionLogin, true)
	s.audit(ctx, u.ID, u.Email, ActionLogin, meta, nil)
	return &AuthResult{User: u, Tokens: pair}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID int64, email string, meta RequestMeta) {
	metrics.RecordAuth(ActionLogin, false)
	s.audit(ctx, userID, email, ActionLoginFailed, meta, nil)
}

// Refresh verifies the refresh token, re-loads its user and rotates both tokens.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.JWT.VerifyRefreshToken(refreshToken)
	if err != nil {
		metrics.RecordAuth(ActionRefresh, false)
		return nil, ErrInvalidOrExpired
	}
	u, err := s.Users.GetByID(ctx, claims.UserID())
	if err != nil {
		metrics.RecordAuth(ActionRefresh, false)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(err)
	}
	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, err
	}
	metrics.RecordAuth(ActionRefresh, true)
	return &AuthResult{User: u, Tokens: pair}, nil
}

func (s *AuthService) issueTokens(u *entity.User) (TokenPair, error) {
	sub := helpers.TokenSubject{UserID: u.ID, Email: u.Email, Name: u.Name}
	access, aexp, err := s.JWT.SignAccessToken(sub)
	if err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Error("sign access token failed")
		return TokenPair{}, apperror.Internal(err)
	}
	refresh, rexp, err := s.JWT.SignRefreshToken(sub)
	if err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).Error("sign refresh token failed")
		return TokenPair{}, apperror.Internal(err)
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Me returns the user behind a verified access token.
func (s *AuthService) Me(ctx context.Context, userID int64) (*entity.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(err)
	}
	return u, nil
}

// UpdateProfileInput fields are optional; nil means unchanged.
type UpdateProfileInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput, meta RequestMeta) (*entity.User, error) {
	if in.Name == nil && in.Email == nil {
		return nil, ErrNoFieldsToUpdate
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	changes := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.Var(name, "required,personname"); err != nil {
			return nil, apperror.Validation(apperror.ReasonInvalidPayload, "invalid name").
				WithDetails(map[string]string{"name": "must be between 2 and 100 characters long"})
		}
		if name != u.Name {
			changes["name"] = name
		}
		u.Name = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validation.Var(email, "required,email,max=255"); err != nil {
			return nil, ErrInvalidEmail
		}
		if email != u.Email {
			other, err := s.Users.GetByEmail(ctx, email)
			switch {
			case err == nil && other.ID != u.ID:
				return nil, ErrEmailInUse
			case err != nil && !errors.Is(err, repo.ErrNotFound):
				return nil, storeError(err)
			}
			changes["email"] = email
		}
		u.Email = email
	}
	if len(changes) == 0 {
		return u, nil
	}
	if err := s.Users.Update(ctx, u); err != nil {
		metrics.RecordAuth(ActionProfileUpdate, false)
		switch {
		case errors.Is(err, repo.ErrDuplicateEmail):
			return nil, ErrEmailInUse
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, storeError(err)
	}
	metrics.RecordAuth(ActionProfileUpdate, true)
	s.audit(ctx, u.ID, u.Email, ActionProfileUpdate, meta, changes)
	return u, nil
}

// ForgotPassword issues a reset token when the email is known. The caller
// always answers with ForgotPasswordMessage.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperror.Validation(apperror.ReasonInvalidPayload, "email is required").
			WithDetails(map[string]string{"email": "is required"})
	}
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.log().WithField("email", email).Debug("password reset requested for unknown email")
			return nil
		}
		return storeError(err)
	}
	token, err := helpers.GenResetToken()
	if err != nil {
		return apperror.Internal(err)
	}
	t := &entity.PasswordResetToken{Token: token, UserID: u.ID, ExpiresAt: s.clock().Add(ResetTokenTTL)}
	if err := s.Resets.Replace(ctx, t); err != nil {
		return storeError(err)
	}
	link := helpers.ResetLink(s.ResetURL, token)
	metrics.RecordAuth(ActionPasswordResetRequest, true)
	s.audit(ctx, u.ID, u.Email, ActionPasswordResetRequest, meta, nil)

	if s.Publisher == nil {
		s.log().WithFields(logrus.Fields{"user_id": u.ID, "reset_link": link}).Debug("no email publisher configured; password reset link")
		return nil
	}
	s.publish(ctx, &mailer.EmailJob{
		To:       u.Email,
		Template: mailtpl.PasswordReset,
		Data:     mailtpl.NewPasswordResetData(s.Brand, u.Name, u.Email, link, t.ExpiresAt, mailtpl.WithIP(meta.IP), mailtpl.WithTime(s.clock())),
	})
	return nil
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,pwd"`
}

// ResetPassword consumes the token and stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput, meta RequestMeta) error {
	in.Token = strings.TrimSpace(in.Token)
	if err := validation.Struct(in); err != nil {
		return invalidPayload(err)
	}
	t, err := s.lookupResetToken(ctx, in.Token)
	if err != nil {
		metrics.RecordAuth(ActionPasswordReset, false)
		return err
	}
	hash, err := helpers.HashPasswordCost(in.Password, s.HashCost)
	if err != nil {
		return apperror.Internal(err)
	}
	if err := s.Resets.ConsumeAndSetPassword(ctx, in.Token, hash, s.clock()); err != nil {
		metrics.RecordAuth(ActionPasswordReset, false)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return storeError(err)
	}
	metrics.RecordAuth(ActionPasswordReset, true)
	s.audit(ctx, t.UserID, "", ActionPasswordReset, meta, nil)
	return nil
}

// VerifyResetToken reports whether token can still be used.
func (s *AuthService) VerifyResetToken(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	if _, err := s.lookupResetToken(ctx, token); err != nil {
		if apperror.HasReason(err, apperror.ReasonInvalidResetToken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// lookupResetToken deletes expired tokens it finds.
func (s *AuthService) lookupResetToken(ctx context.Context, token string) (*entity.PasswordResetToken, error) {
	t, err := s.Resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, storeError(err)
	}
	if t.Expired(s.clock()) {
		if err := s.Resets.Delete(ctx, token); err != nil {
			s.log().WithError(err).Warn("delete expired reset token failed")
		}
		return nil, ErrInvalidResetToken
	}
	return t, nil
}

func (s *AuthService) audit(ctx context.Context, userID int64, email, action string, meta RequestMeta, md map[string]any) {
	s.log().WithFields(logrus.Fields{"user_id": userID, "action": action, "ip": meta.IP}).Info("auth event")
	if s.Audit == nil {
		return
	}
	e := &entity.AuditEntry{UserID: userID, Email: email, Action: action, IP: meta.IP, UserAgent: meta.UserAgent, Metadata: md}
	if err := s.Audit.Append(ctx, e); err != nil {
		s.log().WithError(err).WithField("action", action).Warn("audit append failed")
	}
}

// publish enqueues job; failures are logged and never fail the caller.
func (s *AuthService) publish(ctx context.Context, job *mailer.EmailJob) {
	if s.Publisher == nil {
		return
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Publisher.PublishJSON(c, job); err != nil {
		s.log().WithError(err).WithField("template", job.Template).Warn("publish email job failed")
	}
}
