package service

import (
	"testing"

	"bright-starts-go/internal/model"
	"bright-starts-go/pkg/cache"
	"bright-starts-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserService(userRepo *fakeUserRepo, postRepo *fakePostRepo) UserService {
	jwtManager := token.NewJWTManager("test-secret", 1, 1)
	return NewUserService(userRepo, postRepo, jwtManager, cache.NewMemoryCache(0))
}

func TestRegisterAndLogin(t *testing.T) {
	userRepo := newFakeUserRepo()
	svc := newTestUserService(userRepo, &fakePostRepo{})

	user, err := svc.Register("hoa", "secret123", "Hoa Nguyễn", "hoa@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hoa", user.Username)
	assert.Equal(t, "Hoa Nguyễn", user.DisplayName)
	assert.Equal(t, 1, user.Level)
	assert.NotEqual(t, "secret123", user.Password) // 密码已哈希

	accessToken, refreshToken, err := svc.Login("hoa", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), &fakePostRepo{})

	_, err := svc.Register("hoa", "secret123", "", "")
	require.NoError(t, err)

	_, err = svc.Register("hoa", "another", "", "")
	assert.Error(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestUserService(newFakeUserRepo(), &fakePostRepo{})

	_, err := svc.Register("hoa", "secret123", "", "")
	require.NoError(t, err)

	_, _, err = svc.Login("hoa", "wrong")
	assert.Error(t, err)

	_, _, err = svc.Login("unknown", "secret123")
	assert.Error(t, err)
}

func TestLoginRejectsAIAccount(t *testing.T) {
	userRepo := newFakeUserRepo()
	require.NoError(t, userRepo.Create(&model.User{Username: "abs_pro", IsAI: true}))

	svc := newTestUserService(userRepo, &fakePostRepo{})
	_, _, err := svc.Login("abs_pro", "")
	assert.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	userRepo := newFakeUserRepo()
	svc := newTestUserService(userRepo, &fakePostRepo{})

	_, err := svc.Register("hoa", "secret123", "", "")
	require.NoError(t, err)

	_, refreshToken, err := svc.Login("hoa", "secret123")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	_, _, err = svc.RefreshToken("not-a-token")
	assert.Error(t, err)
}

func TestGetPublicProfileCachesResult(t *testing.T) {
	userRepo := newFakeUserRepo()
	postRepo := &fakePostRepo{}
	svc := newTestUserService(userRepo, postRepo)

	registered, err := svc.Register("hoa", "secret123", "", "")
	require.NoError(t, err)
	require.NoError(t, postRepo.Create(&model.Post{UserID: registered.ID, Content: "bài viết"}))

	profile, err := svc.GetPublicProfile("hoa")
	require.NoError(t, err)
	assert.Equal(t, "hoa", profile.User.Username)
	assert.Len(t, profile.Posts, 1)

	// 缓存命中期间新增的帖子不会立刻出现在主页上
	require.NoError(t, postRepo.Create(&model.Post{UserID: registered.ID, Content: "bài viết 2"}))
	cached, err := svc.GetPublicProfile("hoa")
	require.NoError(t, err)
	assert.Len(t, cached.Posts, 1)
}
