package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
	"livetranslate/pkg/validation"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	// Authenticate resolves a bearer token to the stored user.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	RequireHost(user *domain.User) error
	UpdateRole(ctx context.Context, user *domain.User, requested domain.UserRole) (*domain.User, bool, error)
	GenerateToken(userID domain.UserID) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type Claims struct {
	UserID domain.UserID `json:"user_id"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type authService struct {
	users        ports.UserRepository
	sessions     ports.SessionRepository
	participants ports.ParticipantRepository
	roles        ports.RoleService
	jwtSecret    []byte
	tokenTTL     time.Duration
	bcryptCost   int
	logger       *zap.SugaredLogger
	now          func() time.Time
}

func NewAuthService(
	cfg AuthConfig,
	users ports.UserRepository,
	sessions ports.SessionRepository,
	participants ports.ParticipantRepository,
	roles ports.RoleService,
	logger *zap.SugaredLogger,
) AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &authService{
		users:        users,
		sessions:     sessions,
		participants: participants,
		roles:        roles,
		jwtSecret:    []byte(cfg.JWTSecret),
		tokenTTL:     cfg.TokenTTL,
		bcryptCost:   cost,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*domain.User, string, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, "", domain.NewValidationError("email", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, "", domain.NewValidationError("password", err)
	}
	if err := validation.ValidateDisplayName(name); err != nil {
		return nil, "", domain.NewValidationError("name", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, "", domain.NewValidationError("password", err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           domain.UserID(uuid.NewString()),
		Email:        validation.NormalizeEmail(email),
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		Role:         domain.RoleNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Infow("user registered", "user_id", user.ID)
	return user, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", domain.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	if user.Role != domain.RoleNone {
		user, err = s.repairRole(ctx, user)
		if err != nil {
			return nil, "", err
		}
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// repairRole clears a role that no longer matches any ACTIVE membership.
func (s *authService) repairRole(ctx context.Context, user *domain.User) (*domain.User, error) {
	member, err := s.hasActiveMembership(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member {
		return user, nil
	}

	updated, _, err := s.roles.ApplyRoleTransition(ctx, user, domain.RoleNone)
	if err != nil {
		return nil, fmt.Errorf("reset stale role: %w", err)
	}
	s.logger.Infow("cleared stale role on login",
		"user_id", user.ID,
		"previous_role", user.Role.String(),
	)
	return updated, nil
}

func (s *authService) hasActiveMembership(ctx context.Context, userID domain.UserID) (bool, error) {
	hosted, err := s.sessions.ListActiveByHost(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(hosted) > 0 {
		return true, nil
	}

	participations, err := s.participants.ListActiveByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range participations {
		session, err := s.sessions.GetByID(ctx, p.SessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if session.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *authService) RequireHost(user *domain.User) error {
	if user == nil {
		return domain.ErrUnauthenticated
	}
	if user.Role != domain.RoleHost {
		return domain.ErrHostRequired
	}
	return nil
}

func (s *authService) UpdateRole(ctx context.Context, user *domain.User, requested domain.UserRole) (*domain.User, bool, error) {
	return s.roles.ApplyRoleTransition(ctx, user, requested)
}

func (s *authService) GenerateToken(userID domain.UserID) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
