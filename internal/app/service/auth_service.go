package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ctf_zone/internal/app/policy"
	"ctf_zone/internal/common"
	"ctf_zone/internal/common/security"
	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/captcha"
	"ctf_zone/internal/platform/metrics"

	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"
)

const (
	MsgRegistered      = "An account creation confirmation email has been sent to the email address you provided. Be sure to check your spam folder!"
	MsgForgotPassword  = "If there is an account associated with that email, a password reset email has been sent"
	MsgResetInvalid    = "Password reset link expired or invalid"
	MsgConfirmInvalid  = "Email verification link invalid"
	MsgConfirmExpired  = "Email verification link expired; Please re-register"
	MsgPasswordChanged = "Password changed successfully"
	MsgPasswordReset   = "Your password has been reset"
)

// AuthConfig carries the deployment settings the auth flows depend on.
type AuthConfig struct {
	PublicBaseURL string
	ClubName      string
	UseCaptcha    bool
	CaptchaSecret string
	CaptchaSite   string
}

type AuthService struct {
	userRepo repository.UserRepository
	tokens   *security.TokenService
	mail     *MailService
	captcha  captcha.Verifier
	metrics  *metrics.Metrics
	cfg      AuthConfig
	now      func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokens *security.TokenService,
	mail *MailService,
	verifier captcha.Verifier,
	m *metrics.Metrics,
	cfg AuthConfig,
) *AuthService {
	if verifier == nil {
		verifier = captcha.Disabled{}
	}
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		mail:     mail,
		captcha:  verifier,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
	}
}

type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
	Captcha      string `json:"h-captcha-response"`
}

type LoginRequest struct {
	Username string `json:"username"` // username or email
	Password string `json:"password"`
	Captcha  string `json:"h-captcha-response"`
}

type ForgotPasswordRequest struct {
	Email   string `json:"email"`
	Captcha string `json:"h-captcha-response"`
}

type ResetPasswordRequest struct {
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

type ChangePasswordRequest struct {
	Password     string `json:"password"`
	NewPassword  string `json:"new_password"`
	Confirmation string `json:"confirmation"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func checkNewPassword(password, confirmation string) error {
	if len(password) < security.MinPasswordLength {
		return common.Validationf("Password must be at least %d characters", security.MinPasswordLength)
	}
	if password != confirmation {
		return common.Validationf("Passwords do not match")
	}
	return nil
}

func (s *AuthService) captchaOK(ctx context.Context, response string) bool {
	if !s.cfg.UseCaptcha {
		return true
	}
	return s.captcha.Verify(ctx, s.cfg.CaptchaSecret, response, s.cfg.CaptchaSite)
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Username == "":
		return "", common.Validationf("Username cannot be blank")
	case !slug.IsSlug(req.Username):
		return "", common.Validationf("Invalid username")
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return "", common.Validationf("Invalid email address")
	}
	if err := checkNewPassword(req.Password, req.Confirmation); err != nil {
		return "", err
	}
	if !s.captchaOK(ctx, req.Captcha) {
		return "", common.Validationf("CAPTCHA invalid")
	}

	hashed, err := security.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	user := &model.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashed,
		Role:           model.RoleUser,
		JoinDate:       s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", err
	}

	token, err := s.tokens.IssueConfirm(user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to issue confirmation token: %w", err)
	}
	body := fmt.Sprintf("Hello %s,\n\nWelcome to %s! Confirm your account by opening the link below within %d minutes:\n\n%s/confirm/%s\n\nIf you did not register, ignore this email.\n",
		user.Username, s.cfg.ClubName, int(s.tokens.TTL().Minutes()), s.cfg.PublicBaseURL, token)
	if err := s.mail.Enqueue(ctx, "Confirm Your CTF Account", user.Email, body); err != nil {
		// The janitor removes the unverified row if the mail never goes out.
		log.WithError(err).WithField("user_id", user.ID).Error("failed to queue confirmation email")
	}

	log.WithFields(log.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return MsgRegistered, nil
}

// Confirm verifies a registration. An expired link also removes the
// pending account so the address can register again.
func (s *AuthService) Confirm(ctx context.Context, token string) (*AuthResponse, error) {
	payload, err := s.tokens.Verify(token, security.PurposeConfirm)
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		s.metrics.TokenVerified(string(security.PurposeConfirm), "expired")
		if n, delErr := s.userRepo.DeleteUnverifiedByEmail(ctx, payload.Email); delErr != nil {
			log.WithError(delErr).Error("failed to delete expired registration")
		} else if n > 0 {
			log.WithField("email", payload.Email).Info("expired registration removed")
		}
		return nil, common.Validationf(MsgConfirmExpired)
	case err != nil:
		s.metrics.TokenVerified(string(security.PurposeConfirm), "invalid")
		return nil, common.Validationf(MsgConfirmInvalid)
	}
	s.metrics.TokenVerified(string(security.PurposeConfirm), "ok")

	if err := s.userRepo.MarkVerified(ctx, payload.Email); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Validationf(MsgConfirmInvalid)
		}
		return nil, err
	}
	user, err := s.userRepo.FindByEmail(ctx, payload.Email)
	if err != nil {
		return nil, err
	}
	if err := policy.CanAuthenticate(user); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, common.Validationf("Username and password cannot be blank")
	}
	if !s.captchaOK(ctx, req.Captcha) {
		return nil, common.Validationf("CAPTCHA invalid")
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if errors.Is(err, common.ErrNotFound) {
		user, err = s.userRepo.FindByEmail(ctx, req.Username)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.Unauthorizedf("Incorrect username/password")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.Unauthorizedf("Incorrect username/password")
	}
	if err := policy.CanAuthenticate(user); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *AuthService) session(user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Token: token}, nil
}

// ForgotPassword answers the same way whether or not the address exists.
func (s *AuthService) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return "", common.Validationf("Email cannot be blank")
	}
	if !s.captchaOK(ctx, req.Captcha) {
		return "", common.Validationf("CAPTCHA invalid")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return MsgForgotPassword, nil
		}
		return "", err
	}

	token, err := s.tokens.IssueReset(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to issue reset token: %w", err)
	}
	body := fmt.Sprintf("Hello %s,\n\nA password reset was requested for your %s account. Open the link below within %d minutes to choose a new password:\n\n%s/resetpassword/%s\n\nIf you did not ask for this, ignore this email.\n",
		user.Username, s.cfg.ClubName, int(s.tokens.TTL().Minutes()), s.cfg.PublicBaseURL, token)
	if err := s.mail.Enqueue(ctx, "Reset Your CTF Password", user.Email, body); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("failed to queue reset email")
	}
	return MsgForgotPassword, nil
}

// ResetPassword sets a new password from a reset link. Every token failure
// yields the same message.
func (s *AuthService) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (string, error) {
	payload, err := s.tokens.Verify(token, security.PurposeReset)
	if err != nil {
		result := "invalid"
		if errors.Is(err, security.ErrTokenExpired) {
			result = "expired"
		}
		s.metrics.TokenVerified(string(security.PurposeReset), result)
		return "", common.Validationf(MsgResetInvalid)
	}
	if err := checkNewPassword(req.Password, req.Confirmation); err != nil {
		return "", err
	}

	if err := s.tokens.Consume(ctx, payload); err != nil {
		if errors.Is(err, security.ErrTokenSpent) || errors.Is(err, security.ErrTokenExpired) {
			s.metrics.TokenVerified(string(security.PurposeReset), "spent")
			return "", common.Validationf(MsgResetInvalid)
		}
		return "", err
	}
	s.metrics.TokenVerified(string(security.PurposeReset), "ok")

	hashed, err := security.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, payload.UserID, hashed); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.Validationf(MsgResetInvalid)
		}
		return "", err
	}
	log.WithField("user_id", payload.UserID).Info("password reset")
	return MsgPasswordReset, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, actor *model.User, req ChangePasswordRequest) (string, error) {
	if actor == nil {
		return "", common.ErrUnauthorized
	}
	if req.Password == "" {
		return "", common.Validationf("Password cannot be blank")
	}
	if err := checkNewPassword(req.NewPassword, req.Confirmation); err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByID(ctx, actor.ID)
	if err != nil {
		return "", err
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return "", common.Unauthorizedf("Incorrect password")
	}

	hashed, err := security.HashPassword(req.NewPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return "", err
	}
	return MsgPasswordChanged, nil
}
