package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bright-starts-go/internal/model"
	"bright-starts-go/pkg/cache"
	"bright-starts-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakePostRepo 是 PostRepository 的内存实现，记录 FindRecent 的调用次数。
type fakePostRepo struct {
	mu              sync.Mutex
	posts           []model.Post
	nextID          uint
	findRecentCalls int
}

func (r *fakePostRepo) Create(post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	post.ID = r.nextID
	post.CreatedAt = time.Now()
	r.posts = append(r.posts, *post)
	return nil
}

func (r *fakePostRepo) FindByID(postID uint) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.ID == postID {
			copied := p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePostRepo) FindByUserID(userID uint) ([]model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []model.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *fakePostRepo) FindRecent(offset, limit int) ([]model.Post, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findRecentCalls++
	total := int64(len(r.posts))
	if offset >= len(r.posts) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(r.posts) {
		end = len(r.posts)
	}
	return append([]model.Post(nil), r.posts[offset:end]...), total, nil
}

// recordingResponder 记录 ProcessNewPost 的调用，其余方法为空实现。
type recordingResponder struct {
	mu    sync.Mutex
	calls []tasks.PostCreatedTask
}

func (r *recordingResponder) GetAssistant() (*model.User, error) { return nil, nil }

func (r *recordingResponder) ProcessNewPost(ctx context.Context, postID uint, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tasks.PostCreatedTask{PostID: postID, Content: content})
}

func (r *recordingResponder) Process(ctx context.Context, task tasks.PostCreatedTask) {
	r.ProcessNewPost(ctx, task.PostID, task.Content)
}

func (r *recordingResponder) GetProfile(ctx context.Context) (*AssistantProfile, error) {
	return nil, nil
}

func (r *recordingResponder) SuggestTopics(ctx context.Context, content string) []string {
	return nil
}

func (r *recordingResponder) Shutdown() {}

func (r *recordingResponder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// failingPublisher 总是投递失败，用于验证进程内降级。
type failingPublisher struct{}

func (p *failingPublisher) PublishPostCreated(task tasks.PostCreatedTask) error {
	return errors.New("broker unavailable")
}

func newTestPostService(postRepo *fakePostRepo, commentRepo *fakeCommentRepo, responder AssistantService, publisher PostEventPublisher) PostService {
	return NewPostService(postRepo, commentRepo, newFakeUserRepo(), cache.NewMemoryCache(0), publisher, nil, responder, nil)
}

func TestCreatePostDispatchesToResponderInProcess(t *testing.T) {
	postRepo := &fakePostRepo{}
	responder := &recordingResponder{}
	// 没有配置事件投递时直接走进程内异步触发
	svc := newTestPostService(postRepo, &fakeCommentRepo{}, responder, nil)

	post, err := svc.CreatePost(context.Background(), 7, "Giải phương trình x^2-4=0", "")
	require.NoError(t, err)
	assert.NotZero(t, post.ID)

	// 发帖请求不等待 AI 处理，这里轮询等它被触发
	assert.Eventually(t, func() bool {
		return responder.callCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCreatePostFallsBackWhenPublishFails(t *testing.T) {
	postRepo := &fakePostRepo{}
	responder := &recordingResponder{}
	svc := newTestPostService(postRepo, &fakeCommentRepo{}, responder, &failingPublisher{})

	_, err := svc.CreatePost(context.Background(), 7, "nội dung bài viết", "")
	require.NoError(t, err) // 投递失败不影响发帖成功

	assert.Eventually(t, func() bool {
		return responder.callCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGetFeedCachesFirstPage(t *testing.T) {
	postRepo := &fakePostRepo{}
	require.NoError(t, postRepo.Create(&model.Post{UserID: 1, Content: "bài viết"}))

	svc := newTestPostService(postRepo, &fakeCommentRepo{}, &recordingResponder{}, nil)

	first, err := svc.GetFeed(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Total)
	assert.Equal(t, 1, postRepo.findRecentCalls)

	// 第二次读取命中缓存，不再查库
	_, err = svc.GetFeed(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, postRepo.findRecentCalls)

	// 非首页不走缓存
	_, err = svc.GetFeed(context.Background(), 2, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, postRepo.findRecentCalls)
}

func TestCreatePostInvalidatesFeedCache(t *testing.T) {
	postRepo := &fakePostRepo{}
	svc := newTestPostService(postRepo, &fakeCommentRepo{}, &recordingResponder{}, nil)

	_, err := svc.GetFeed(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, postRepo.findRecentCalls)

	_, err = svc.CreatePost(context.Background(), 1, "bài viết mới", "")
	require.NoError(t, err)

	feed, err := svc.GetFeed(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, postRepo.findRecentCalls)
	assert.Equal(t, int64(1), feed.Total)
}

func TestAddCommentRequiresExistingPost(t *testing.T) {
	postRepo := &fakePostRepo{}
	commentRepo := &fakeCommentRepo{}
	svc := newTestPostService(postRepo, commentRepo, &recordingResponder{}, nil)

	_, err := svc.AddComment(context.Background(), 99, 1, "bình luận")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, postRepo.Create(&model.Post{UserID: 1, Content: "bài viết"}))
	comment, err := svc.AddComment(context.Background(), 1, 2, "bình luận")
	require.NoError(t, err)
	assert.Equal(t, uint(1), comment.PostID)
	assert.Equal(t, uint(2), comment.UserID)
}
