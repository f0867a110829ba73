package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const defaultAccessTTL = time.Hour

// JWTClaims is the access token issued by the guest app's identity service.
type JWTClaims struct {
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// IssueToken signs an access token; used by staff tooling and tests.
	IssueToken(userID, sessionID uuid.UUID, role string) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
	accessTTL    time.Duration
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

func normalizeRole(role string) string {
	if strings.EqualFold(strings.TrimSpace(role), ctxutil.RoleStaff) {
		return ctxutil.RoleStaff
	}
	return ctxutil.RoleGuest
}

func (as *authService) IssueToken(userID, sessionID uuid.UUID, role string) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("missing user id")
	}
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}
	now := as.now()
	claims := JWTClaims{
		Role:      normalizeRole(role),
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid user id in token: %w", err)
	}
	// Tokens without a session id still get a stable per-token session for SSE bookkeeping.
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		sessionID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(tokenString))
	}
	rd := &ctxutil.RequestData{
		UserID:    userID,
		SessionID: sessionID,
		Role:      normalizeRole(claims.Role),
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
