package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bright-starts-go/internal/model"
	"bright-starts-go/internal/repository"
	"bright-starts-go/pkg/cache"
	"bright-starts-go/pkg/database"
	"bright-starts-go/pkg/hash"
	"bright-starts-go/pkg/token"

	"gorm.io/gorm"
)

// PublicProfile 是用户主页接口返回的数据：账号信息与其发布的帖子。
type PublicProfile struct {
	User  model.User   `json:"user"`
	Posts []model.Post `json:"posts"`
}

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(username, password, displayName, email string) (*model.User, error)
	Login(username, password string) (accessToken, refreshToken string, err error)
	GetProfile(username string) (*model.User, error)
	// GetPublicProfile 返回用户主页数据，结果走进程内缓存。
	GetPublicProfile(username string) (*PublicProfile, error)
	Logout(tokenString string) error
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	postRepo   repository.PostRepository
	jwtManager *token.JWTManager
	memCache   *cache.MemoryCache
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, postRepo repository.PostRepository, jwtManager *token.JWTManager, memCache *cache.MemoryCache) UserService {
	return &userService{
		userRepo:   userRepo,
		postRepo:   postRepo,
		jwtManager: jwtManager,
		memCache:   memCache,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(username, password, displayName, email string) (*model.User, error) {
	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(username)
	if err == nil {
		return nil, errors.New("用户名已存在")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	if displayName == "" {
		displayName = username
	}

	// 3. 创建新用户
	newUser := &model.User{
		Username:    username,
		Password:    hashedPassword,
		DisplayName: displayName,
		Email:       email,
		Level:       1,
		XP:          0,
		Role:        "USER", // 默认角色
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}

	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(username, password string) (accessToken, refreshToken string, err error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", errors.New("invalid credentials")
		}
		return "", "", err
	}

	// 2. AI 账号没有密码，不允许登录
	if user.IsAI {
		return "", "", errors.New("invalid credentials")
	}

	// 3. 验证密码
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", "", errors.New("invalid credentials")
	}

	// 4. 生成 access token 和 refresh token
	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// GetProfile 根据用户名获取用户详细信息。
func (s *userService) GetProfile(username string) (*model.User, error) {
	return s.userRepo.FindByUsername(username)
}

// GetPublicProfile 返回用户主页数据：账号信息与其发布的帖子。
func (s *userService) GetPublicProfile(username string) (*PublicProfile, error) {
	cacheKey := "user:profile:" + username
	if cached, ok := s.memCache.Get(cacheKey); ok {
		if profile, ok := cached.(*PublicProfile); ok {
			return profile, nil
		}
	}

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.FindByUserID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("查询用户帖子失败: %w", err)
	}

	profile := &PublicProfile{User: *user, Posts: posts}
	s.memCache.Set(cacheKey, profile, time.Minute)
	return profile, nil
}

// Logout 处理用户登出逻辑，将 token 加入 Redis 黑名单。
func (s *userService) Logout(tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	// token 的剩余有效期将作为 Redis key 的过期时间。
	expiration := time.Until(claims.ExpiresAt.Time)
	return database.RDB.Set(context.Background(), "blacklist:"+tokenString, "true", expiration).Err()
}

// RefreshToken 用有效的 refresh token 换发新的 token 对。
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", errors.New("无效或已过期的 refresh token")
	}

	// 确认用户仍然存在
	user, err := s.userRepo.FindByUsername(claims.Username)
	if err != nil {
		return "", "", errors.New("用户不存在")
	}

	newAccessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}
