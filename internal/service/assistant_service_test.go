package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"bright-starts-go/internal/config"
	"bright-starts-go/internal/model"
	"bright-starts-go/pkg/cache"
	"bright-starts-go/pkg/gemini"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepo 是 UserRepository 的内存实现，username 上模拟唯一索引。
type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[string]*model.User
	nextID      uint
	createCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if _, exists := r.users[user.Username]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

func (r *fakeUserRepo) FindByUsername(username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) FindByID(userID uint) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == userID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

// fakeCommentRepo 是 CommentRepository 的内存实现。
type fakeCommentRepo struct {
	mu       sync.Mutex
	comments []model.Comment
	nextID   uint
}

func (r *fakeCommentRepo) Create(comment *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	comment.ID = r.nextID
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) FindByPostID(postID uint) ([]model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.Comment
	for _, c := range r.comments {
		if c.PostID == postID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) CountByUserID(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, c := range r.comments {
		if c.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeCommentRepo) CountDistinctPostsByUserID(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	posts := make(map[uint]struct{})
	for _, c := range r.comments {
		if c.UserID == userID {
			posts[c.PostID] = struct{}{}
		}
	}
	return int64(len(posts)), nil
}

func (r *fakeCommentRepo) all() []model.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Comment(nil), r.comments...)
}

// stubAnalyzer 是 gemini.Client 的桩实现，返回固定的分析结果。
type stubAnalyzer struct {
	analysis *gemini.PostAnalysis
	topics   []string
}

func (s *stubAnalyzer) AnalyzePost(ctx context.Context, content string) *gemini.PostAnalysis {
	return s.analysis
}

func (s *stubAnalyzer) SuggestTopics(ctx context.Context, content string) []string {
	return s.topics
}

func testAssistantConfig() config.AssistantConfig {
	return config.AssistantConfig{
		Username:            "abs_pro",
		DisplayName:         "ABS Pro",
		Email:               "ai@brightstarts.academy",
		PhotoURL:            "/ai-avatar.svg",
		ConfidenceThreshold: 0.6,
		MinDelayMs:          10,
		MaxDelayMs:          30,
	}
}

func newTestAssistant(userRepo *fakeUserRepo, commentRepo *fakeCommentRepo, analyzer gemini.Client) AssistantService {
	return NewAssistantService(testAssistantConfig(), userRepo, commentRepo, analyzer, cache.NewMemoryCache(0), nil)
}

func TestGetAssistantCreatesOnce(t *testing.T) {
	userRepo := newFakeUserRepo()
	svc := newTestAssistant(userRepo, &fakeCommentRepo{}, &stubAnalyzer{analysis: gemini.FallbackAnalysis()})

	first, err := svc.GetAssistant()
	require.NoError(t, err)
	second, err := svc.GetAssistant()
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, userRepo.createCalls)
	assert.Equal(t, "abs_pro", first.Username)
	assert.Equal(t, 999, first.Level)
	assert.Equal(t, 999999, first.XP)
	assert.True(t, first.IsAI)
	assert.True(t, first.IsVerified)
}

func TestGetAssistantReusesExistingRow(t *testing.T) {
	userRepo := newFakeUserRepo()
	existing := &model.User{Username: "abs_pro", DisplayName: "ABS Pro", IsAI: true}
	require.NoError(t, userRepo.Create(existing))

	svc := newTestAssistant(userRepo, &fakeCommentRepo{}, &stubAnalyzer{analysis: gemini.FallbackAnalysis()})
	got, err := svc.GetAssistant()
	require.NoError(t, err)

	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, 1, userRepo.createCalls) // 只有测试里的那次创建
}

func TestConcurrentFirstResolutionCreatesSingleRow(t *testing.T) {
	userRepo := newFakeUserRepo()

	// 两个独立的服务实例模拟并发的首次解析：各自都没有记忆句柄
	svc1 := newTestAssistant(userRepo, &fakeCommentRepo{}, &stubAnalyzer{analysis: gemini.FallbackAnalysis()})
	svc2 := newTestAssistant(userRepo, &fakeCommentRepo{}, &stubAnalyzer{analysis: gemini.FallbackAnalysis()})

	var wg sync.WaitGroup
	ids := make([]uint, 2)
	errs := make([]error, 2)
	for i, svc := range []AssistantService{svc1, svc2} {
		wg.Add(1)
		go func(i int, svc AssistantService) {
			defer wg.Done()
			user, err := svc.GetAssistant()
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = user.ID
		}(i, svc)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// 唯一索引加冲突回查保证两边拿到同一行
	assert.Equal(t, ids[0], ids[1])
	userRepo.mu.Lock()
	defer userRepo.mu.Unlock()
	assert.Len(t, userRepo.users, 1)
}

func TestProcessNewPostBelowThresholdStaysSilent(t *testing.T) {
	commentRepo := &fakeCommentRepo{}
	analyzer := &stubAnalyzer{analysis: &gemini.PostAnalysis{Type: gemini.TypeQuestion, Response: "trả lời", Confidence: 0.59}}
	svc := newTestAssistant(newFakeUserRepo(), commentRepo, analyzer)

	svc.ProcessNewPost(context.Background(), 1, "một câu hỏi")

	// 等足最大延迟，确认确实没有评论被安排
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, commentRepo.all())
}

func TestProcessNewPostAtThresholdResponds(t *testing.T) {
	commentRepo := &fakeCommentRepo{}
	analyzer := &stubAnalyzer{analysis: &gemini.PostAnalysis{Type: gemini.TypeQuestion, Response: "trả lời", Confidence: 0.6}}
	svc := newTestAssistant(newFakeUserRepo(), commentRepo, analyzer)

	// 阈值本身算达标，应当安排回复
	svc.ProcessNewPost(context.Background(), 1, "một câu hỏi")

	assert.Eventually(t, func() bool {
		return len(commentRepo.all()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestProcessNewPostEndToEnd(t *testing.T) {
	userRepo := newFakeUserRepo()
	commentRepo := &fakeCommentRepo{}
	analyzer := &stubAnalyzer{analysis: &gemini.PostAnalysis{
		Type:       gemini.TypeExercise,
		Response:   "Phương trình có hai nghiệm x = 2 và x = -2.",
		Confidence: 0.8,
	}}
	svc := newTestAssistant(userRepo, commentRepo, analyzer)

	svc.ProcessNewPost(context.Background(), 42, "Giải phương trình x^2-4=0")

	assert.Eventually(t, func() bool {
		return len(commentRepo.all()) == 1
	}, time.Second, 10*time.Millisecond)

	assistant, err := svc.GetAssistant()
	require.NoError(t, err)

	comments := commentRepo.all()
	require.Len(t, comments, 1)
	assert.Equal(t, uint(42), comments[0].PostID)
	assert.Equal(t, assistant.ID, comments[0].UserID)
	assert.NotEmpty(t, comments[0].Content)
}

func TestShutdownCancelsPendingReplies(t *testing.T) {
	commentRepo := &fakeCommentRepo{}
	analyzer := &stubAnalyzer{analysis: &gemini.PostAnalysis{Type: gemini.TypeQuestion, Response: "trả lời", Confidence: 0.9}}

	cfg := testAssistantConfig()
	cfg.MinDelayMs = 5000
	cfg.MaxDelayMs = 5000
	svc := NewAssistantService(cfg, newFakeUserRepo(), commentRepo, analyzer, cache.NewMemoryCache(0), nil)

	svc.ProcessNewPost(context.Background(), 1, "nội dung")
	svc.Shutdown()

	// 回复被取消后不应再有任何评论落库
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, commentRepo.all())
}

func TestGetProfileAggregatesStats(t *testing.T) {
	userRepo := newFakeUserRepo()
	commentRepo := &fakeCommentRepo{}
	svc := newTestAssistant(userRepo, commentRepo, &stubAnalyzer{analysis: gemini.FallbackAnalysis()})

	assistant, err := svc.GetAssistant()
	require.NoError(t, err)

	// 助教在两条帖子上发过三条评论，另一个用户的评论不计入
	for _, c := range []model.Comment{
		{PostID: 1, UserID: assistant.ID, Content: "a"},
		{PostID: 1, UserID: assistant.ID, Content: "b"},
		{PostID: 2, UserID: assistant.ID, Content: "c"},
		{PostID: 3, UserID: assistant.ID + 1, Content: "d"},
	} {
		comment := c
		require.NoError(t, commentRepo.Create(&comment))
	}

	profile, err := svc.GetProfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), profile.Stats.TotalResponses)
	assert.Equal(t, int64(2), profile.Stats.PostsHelped)
	assert.NotEmpty(t, profile.Stats.Expertise)
	assert.Equal(t, assistant.CreatedAt, profile.Stats.JoinedDate)
}

func TestGetProfileUsesCache(t *testing.T) {
	userRepo := newFakeUserRepo()
	commentRepo := &fakeCommentRepo{}
	svc := newTestAssistant(userRepo, commentRepo, &stubAnalyzer{analysis: gemini.FallbackAnalysis()})

	first, err := svc.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Stats.TotalResponses)

	// 缓存命中期间新增的评论不会立刻反映到统计里
	assistant, err := svc.GetAssistant()
	require.NoError(t, err)
	comment := model.Comment{PostID: 1, UserID: assistant.ID, Content: "mới"}
	require.NoError(t, commentRepo.Create(&comment))

	second, err := svc.GetProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Stats.TotalResponses)
}
