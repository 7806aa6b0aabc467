package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"contesthub-server/common/logger"
	infrds "contesthub-server/internal/infra/redis"

	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdentityVerifier 将 Bearer token 解析为用户 email
type IdentityVerifier interface {
	ResolveIdentity(ctx context.Context, token string) (string, error)
}

// Claims 身份令牌的 Claims（subject 为 email）
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier HS256 令牌签发与校验；rdb 非空时启用注销黑名单
type JWTVerifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	rdb    *goredis.Client
}

func NewJWTVerifier(secret, issuer string, ttl time.Duration, rdb *goredis.Client) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, ttl: ttl, rdb: rdb}
}

// IssueToken 为 email 签发访问令牌
func (v *JWTVerifier) IssueToken(email string) (string, time.Time, error) {
	if len(v.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	now := time.Now()
	expiresAt := now.Add(v.ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	return token, expiresAt, err
}

func (v *JWTVerifier) parse(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrMissingSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		logger.Warn("jwt parse failed", zap.Error(err))
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Email == "" {
		claims.Email = claims.Subject
	}
	if claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ResolveIdentity 校验令牌并返回 email
func (v *JWTVerifier) ResolveIdentity(ctx context.Context, tokenString string) (string, error) {
	claims, err := v.parse(tokenString)
	if err != nil {
		return "", err
	}
	if v.isRevoked(ctx, tokenString) {
		logger.Warn("token is blacklisted", zap.String("email", claims.Email))
		return "", ErrTokenRevoked
	}
	return claims.Email, nil
}

// Revoke 注销令牌（加入黑名单直至过期）
func (v *JWTVerifier) Revoke(ctx context.Context, tokenString string) error {
	claims, err := v.parse(tokenString)
	if err != nil {
		return err
	}
	if v.rdb == nil {
		logger.Warn("redis not available, cannot revoke token")
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := v.rdb.SetEx(ctx, infrds.TokenBlacklistKey(digest(tokenString)), "1", ttl).Err(); err != nil {
		logger.Warn("failed to add token to blacklist", zap.Error(err))
		return err
	}
	logger.Info("token revoked", zap.String("email", claims.Email), zap.Duration("ttl", ttl))
	return nil
}

// isRevoked Redis 不可用时不阻断
func (v *JWTVerifier) isRevoked(ctx context.Context, tokenString string) bool {
	if v.rdb == nil {
		return false
	}
	n, err := v.rdb.Exists(ctx, infrds.TokenBlacklistKey(digest(tokenString))).Result()
	if err != nil {
		logger.Warn("failed to check token blacklist", zap.Error(err))
		return false
	}
	return n > 0
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// BearerToken 从 Authorization 头提取令牌
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidTokenFormat
	}
	return parts[1], nil
}
