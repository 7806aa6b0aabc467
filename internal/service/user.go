package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contesthub-server/common/constant"
	"contesthub-server/common/logger"
	infrds "contesthub-server/internal/infra/redis"
	"contesthub-server/internal/model"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type UserService interface {
	// SignIn 首次登录建档（role=user），之后刷新最近登录时间
	SignIn(ctx context.Context, u model.User) (created bool, err error)
	Role(ctx context.Context, email string) (string, error)
	// Authorize 校验 email 的角色属于 roles 之一
	Authorize(ctx context.Context, email string, roles ...string) error
	List(ctx context.Context, p Page) (PageResult[model.User], error)
	UpdateRole(ctx context.Context, email, role string) error
}

type userService struct {
	users   UserStore
	rdb     *goredis.Client // 可选：角色缓存
	roleTTL time.Duration
}

func NewUserService(users UserStore, rdb *goredis.Client, roleTTL time.Duration) UserService {
	return &userService{users: users, rdb: rdb, roleTTL: roleTTL}
}

func (s *userService) SignIn(ctx context.Context, u model.User) (bool, error) {
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return false, fmt.Errorf("%w: valid email is required", ErrInvalidRequest)
	}
	created, err := s.users.UpsertUser(ctx, &u)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if created {
		logger.InfoCtx(ctx, "user created", zap.String("email", u.Email))
	}
	return created, nil
}

func (s *userService) Role(ctx context.Context, email string) (string, error) {
	if s.rdb != nil && s.roleTTL > 0 {
		if role, err := s.rdb.Get(ctx, infrds.UserRoleKey(email)).Result(); err == nil && role != "" {
			return role, nil
		}
	}
	u, err := s.users.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}
	if s.rdb != nil && s.roleTTL > 0 {
		if err := s.rdb.Set(ctx, infrds.UserRoleKey(email), u.Role, s.roleTTL).Err(); err != nil {
			logger.WarnCtx(ctx, "cache user role failed", zap.Error(err))
		}
	}
	return u.Role, nil
}

func (s *userService) Authorize(ctx context.Context, email string, roles ...string) error {
	role, err := s.Role(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrForbidden
		}
		return err
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return ErrForbidden
}

func (s *userService) List(ctx context.Context, p Page) (PageResult[model.User], error) {
	off, lim := p.OffsetLimit()
	list, total, err := s.users.ListUsers(ctx, off, lim)
	if err != nil {
		return PageResult[model.User]{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return newPageResult(list, total, p), nil
}

func (s *userService) UpdateRole(ctx context.Context, email, role string) error {
	email = strings.TrimSpace(email)
	role = strings.ToLower(strings.TrimSpace(role))
	if email == "" || !constant.IsValidRole(role) {
		return fmt.Errorf("%w: role must be one of user|creator|admin", ErrInvalidRequest)
	}
	if err := s.users.UpdateUserRole(ctx, email, role); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if s.rdb != nil {
		_ = s.rdb.Del(ctx, infrds.UserRoleKey(email)).Err()
	}
	logger.InfoCtx(ctx, "user role updated", zap.String("email", email), zap.String("role", role))
	return nil
}
