package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/Nexoracode/khadamat/config"
	"github.com/Nexoracode/khadamat/internal/types"
)

const minPhoneLength = 11

var (
	ErrInvalidPhone = errors.New("phone number must have at least 11 digits")
	ErrInvalidOTP   = errors.New("invalid or expired verification code")
)

var _ Service = (*ServiceImpl)(nil)

// Service implements the mocked phone login. It is not a security boundary:
// every challenge accepts the configured development code.
type Service interface {
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, req types.VerifyOTPRequest) (*types.LoginResponse, error)
	IssueToken(userID, role string) (string, error)
}

// OTPSender delivers a verification code to a phone.
type OTPSender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender "delivers" codes by logging them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, phone, code string) error {
	s.logger.InfoContext(ctx, "OTP issued", slog.String("phone", phone), slog.String("code", code))
	return nil
}

type ServiceImpl struct {
	logger     *slog.Logger
	sender     OTPSender
	challenges *cache.Cache
	otpCfg     config.OTPConfig
	jwtCfg     config.JWTConfig
}

func NewServiceImpl(sender OTPSender, otpCfg config.OTPConfig, jwtCfg config.JWTConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		sender:     sender,
		challenges: cache.New(otpCfg.TTL, 2*otpCfg.TTL),
		otpCfg:     otpCfg,
		jwtCfg:     jwtCfg,
	}
}

func normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if utf8.RuneCountInString(phone) < minPhoneLength {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

// RequestOTP opens a challenge for phone and hands the code to the sender.
func (s *ServiceImpl) RequestOTP(ctx context.Context, phone string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "RequestOTP")
	defer span.End()

	l := s.logger.With(slog.String("method", "RequestOTP"))

	phone, err := normalizePhone(phone)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid phone")
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.otpCfg.DevCode), bcrypt.DefaultCost)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash OTP", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to hash OTP")
		return fmt.Errorf("failed to hash otp: %w", err)
	}
	s.challenges.SetDefault(phone, hash)

	if err := s.sender.Send(ctx, phone, s.otpCfg.DevCode); err != nil {
		s.challenges.Delete(phone)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send OTP")
		return fmt.Errorf("failed to send otp: %w", err)
	}
	span.SetStatus(codes.Ok, "OTP requested")
	return nil
}

// VerifyOTP consumes the challenge for the phone and returns an access token.
func (s *ServiceImpl) VerifyOTP(ctx context.Context, req types.VerifyOTPRequest) (*types.LoginResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "VerifyOTP")
	defer span.End()

	l := s.logger.With(slog.String("method", "VerifyOTP"))

	phone, err := normalizePhone(req.Phone)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid phone")
		return nil, err
	}

	stored, ok := s.challenges.Get(phone)
	if !ok {
		l.WarnContext(ctx, "No pending challenge for phone")
		span.SetStatus(codes.Error, "No challenge")
		return nil, ErrInvalidOTP
	}
	if err := bcrypt.CompareHashAndPassword(stored.([]byte), []byte(strings.TrimSpace(req.Code))); err != nil {
		l.WarnContext(ctx, "OTP mismatch")
		span.SetStatus(codes.Error, "OTP mismatch")
		return nil, ErrInvalidOTP
	}
	s.challenges.Delete(phone)

	role := types.RoleCustomer
	if req.Admin {
		role = types.RoleAdmin
	}
	token, err := s.IssueToken(phone, role)
	if err != nil {
		l.ErrorContext(ctx, "Failed to sign token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to sign token")
		return nil, err
	}

	l.InfoContext(ctx, "User logged in", slog.String("role", role))
	span.SetStatus(codes.Ok, "OTP verified")
	return &types.LoginResponse{
		AccessToken: token,
		Role:        role,
		Message:     "ورود با موفقیت انجام شد",
	}, nil
}

// IssueToken signs an HS256 access token for userID.
func (s *ServiceImpl) IssueToken(userID, role string) (string, error) {
	now := time.Now()
	claims := types.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.AccessTokenTTL)),
		},
	}
	if s.jwtCfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.jwtCfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}
