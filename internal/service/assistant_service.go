package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"bright-starts-go/internal/config"
	"bright-starts-go/internal/model"
	"bright-starts-go/internal/repository"
	"bright-starts-go/pkg/cache"
	"bright-starts-go/pkg/gemini"
	"bright-starts-go/pkg/log"
	"bright-starts-go/pkg/tasks"

	"gorm.io/gorm"
)

// assistantProfileCacheKey 是 AI 助教主页数据在进程内缓存中的键。
const assistantProfileCacheKey = "assistant:profile"

// assistantExpertise 是 AI 助教主页展示的擅长领域列表。
var assistantExpertise = []string{"Toán học", "Khoa học", "Văn học", "Ngoại ngữ", "Lập trình"}

// AssistantStats 是 AI 助教的活动统计。
type AssistantStats struct {
	// TotalResponses 是助教发表过的评论总数，按助教账号真实聚合。
	TotalResponses int64 `json:"totalResponses"`
	// PostsHelped 是助教回复过的不同帖子数量。
	PostsHelped int64     `json:"postsHelped"`
	Expertise   []string  `json:"expertise"`
	JoinedDate  time.Time `json:"joinedDate"`
}

// AssistantProfile 是 AI 助教主页接口返回的数据：账号信息加统计块。
type AssistantProfile struct {
	model.User
	Stats AssistantStats `json:"stats"`
}

// AssistantService 接口定义了 AI 助教相关的业务操作。
type AssistantService interface {
	// GetAssistant 获取 AI 助教账号，首次调用时懒创建并在进程内记忆。
	GetAssistant() (*model.User, error)
	// ProcessNewPost 处理一条新帖子：分析内容，置信度达标则在随机延迟后发表评论。
	// 触发方不等待结果，所有失败都只记日志。
	ProcessNewPost(ctx context.Context, postID uint, content string)
	// Process 适配 Kafka 消费者的任务处理接口。
	Process(ctx context.Context, task tasks.PostCreatedTask)
	// GetProfile 返回助教账号与活动统计，结果走进程内缓存。
	GetProfile(ctx context.Context) (*AssistantProfile, error)
	// SuggestTopics 基于帖子内容推荐学习主题，失败时返回空列表。
	SuggestTopics(ctx context.Context, content string) []string
	// Shutdown 取消所有尚未触发的延迟回复并等待在途的执行完毕。
	Shutdown()
}

// assistantService 是 AssistantService 接口的实现。
type assistantService struct {
	cfg         config.AssistantConfig
	userRepo    repository.UserRepository
	commentRepo repository.CommentRepository
	analyzer    gemini.Client
	memCache    *cache.MemoryCache
	notifier    FeedNotifier

	// assistant 是进程内记忆的助教账号句柄，数据库才是系统记录。
	mu        sync.Mutex
	assistant *model.User

	// timers 跟踪所有待触发的延迟回复，停机时可以确定性地取消。
	timerMu sync.Mutex
	timers  map[*time.Timer]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewAssistantService 创建一个新的 AssistantService 实例。
// notifier 可以为 nil，此时不做动态流推送。
func NewAssistantService(
	cfg config.AssistantConfig,
	userRepo repository.UserRepository,
	commentRepo repository.CommentRepository,
	analyzer gemini.Client,
	memCache *cache.MemoryCache,
	notifier FeedNotifier,
) AssistantService {
	return &assistantService{
		cfg:         cfg,
		userRepo:    userRepo,
		commentRepo: commentRepo,
		analyzer:    analyzer,
		memCache:    memCache,
		notifier:    notifier,
		timers:      make(map[*time.Timer]struct{}),
	}
}

// GetAssistant 获取或创建 AI 助教账号。
// 查找-创建序列在并发首次调用下有竞态，靠 users.username 的唯一索引兜底：
// 创建冲突时回查一次，谁先创建成功就用谁的记录。
func (s *assistantService) GetAssistant() (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assistant != nil {
		return s.assistant, nil
	}

	existing, err := s.userRepo.FindByUsername(s.cfg.Username)
	if err == nil {
		s.assistant = existing
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查找 AI 助教账号失败: %w", err)
	}

	// 不存在则用满级哨兵值创建
	assistant := &model.User{
		FirebaseUID: fmt.Sprintf("ai-%s-uid-%d", s.cfg.Username, time.Now().UnixMilli()),
		Username:    s.cfg.Username,
		Email:       s.cfg.Email,
		DisplayName: s.cfg.DisplayName,
		PhotoURL:    s.cfg.PhotoURL,
		Level:       999,
		XP:          999999,
		IsAI:        true,
		IsVerified:  true,
		Role:        "USER",
	}
	if createErr := s.userRepo.Create(assistant); createErr != nil {
		// 唯一索引冲突说明并发的首次创建已经成功，回查一次即可
		if found, findErr := s.userRepo.FindByUsername(s.cfg.Username); findErr == nil {
			s.assistant = found
			return found, nil
		}
		return nil, fmt.Errorf("创建 AI 助教账号失败: %w", createErr)
	}

	log.Infof("AI 助教账号 '%s' 创建成功, id: %d", assistant.Username, assistant.ID)
	s.assistant = assistant
	return assistant, nil
}

// Process 实现 Kafka 消费者的任务处理接口。
func (s *assistantService) Process(ctx context.Context, task tasks.PostCreatedTask) {
	s.ProcessNewPost(ctx, task.PostID, task.Content)
}

// ProcessNewPost 处理一条新帖子。
// 每条帖子至多触发一次分析和一次延迟回复；多条帖子的回复因各自独立的
// 随机延迟，落库顺序可能与发帖顺序不同。
func (s *assistantService) ProcessNewPost(ctx context.Context, postID uint, content string) {
	assistant, err := s.GetAssistant()
	if err != nil {
		// 没有助教身份就无从回复，本条事件到此为止，不重试
		log.Errorf("处理帖子 %d 失败，无法获取 AI 助教账号: %v", postID, err)
		return
	}

	// 分析客户端内部已兜底，这里拿到的永远是可用结果
	analysis := s.analyzer.AnalyzePost(ctx, content)

	// 置信度不足视为"没把握开口"，静默跳过（阈值本身算达标）
	if analysis.Confidence < s.cfg.ConfidenceThreshold {
		log.Infof("AI 置信度不足 (%.2f < %.2f)，跳过对帖子 %d 的回复",
			analysis.Confidence, s.cfg.ConfidenceThreshold, postID)
		return
	}

	// 随机延迟后再发表评论，避免回复显得即时、机械
	delay := s.randomDelay()
	scheduled := s.schedule(delay, func() {
		comment := &model.Comment{
			PostID:  postID,
			UserID:  assistant.ID,
			Content: analysis.Response,
		}
		if err := s.commentRepo.Create(comment); err != nil {
			// 帖子可能已被删除或存储不可用：记日志后丢弃，不补偿不通知
			log.Errorf("AI 评论写入失败, postId: %d, error: %v", postID, err)
			return
		}
		log.Infof("AI 已回复帖子 %d, 分类: %s", postID, analysis.Type)
		s.memCache.Delete(assistantProfileCacheKey)
		if s.notifier != nil {
			s.notifier.Broadcast(EventCommentCreated, comment)
		}
	})
	if scheduled {
		log.Infof("已为帖子 %d 安排 AI 回复，延迟 %s", postID, delay)
	}
}

// randomDelay 返回配置区间内均匀分布的随机延迟。
func (s *assistantService) randomDelay() time.Duration {
	minMs := s.cfg.MinDelayMs
	maxMs := s.cfg.MaxDelayMs
	if minMs <= 0 {
		minMs = 2000
	}
	if maxMs <= minMs {
		maxMs = minMs
	}
	return time.Duration(minMs+rand.Intn(maxMs-minMs+1)) * time.Millisecond
}

// schedule 注册一个可取消的延迟任务。服务已关闭时返回 false。
func (s *assistantService) schedule(delay time.Duration, fn func()) bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.closed {
		return false
	}

	s.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.timerMu.Lock()
		delete(s.timers, timer)
		s.timerMu.Unlock()
		fn()
	})
	s.timers[timer] = struct{}{}
	return true
}

// Shutdown 取消所有尚未触发的延迟回复并等待在途回调结束。
func (s *assistantService) Shutdown() {
	s.timerMu.Lock()
	s.closed = true
	for timer := range s.timers {
		if timer.Stop() {
			// 成功取消的任务不会再执行回调，这里替它归还计数
			s.wg.Done()
		}
		delete(s.timers, timer)
	}
	s.timerMu.Unlock()
	s.wg.Wait()
}

// GetProfile 返回助教账号与活动统计，这是读聚合路径，结果走进程内缓存。
func (s *assistantService) GetProfile(ctx context.Context) (*AssistantProfile, error) {
	if cached, ok := s.memCache.Get(assistantProfileCacheKey); ok {
		if profile, ok := cached.(*AssistantProfile); ok {
			return profile, nil
		}
	}

	assistant, err := s.GetAssistant()
	if err != nil {
		return nil, err
	}

	totalResponses, err := s.commentRepo.CountByUserID(assistant.ID)
	if err != nil {
		return nil, fmt.Errorf("统计 AI 回复总数失败: %w", err)
	}
	postsHelped, err := s.commentRepo.CountDistinctPostsByUserID(assistant.ID)
	if err != nil {
		return nil, fmt.Errorf("统计 AI 帮助过的帖子数失败: %w", err)
	}

	profile := &AssistantProfile{
		User: *assistant,
		Stats: AssistantStats{
			TotalResponses: totalResponses,
			PostsHelped:    postsHelped,
			Expertise:      assistantExpertise,
			JoinedDate:     assistant.CreatedAt,
		},
	}
	s.memCache.Set(assistantProfileCacheKey, profile, time.Minute)
	return profile, nil
}

// SuggestTopics 基于帖子内容推荐学习主题。
func (s *assistantService) SuggestTopics(ctx context.Context, content string) []string {
	return s.analyzer.SuggestTopics(ctx, content)
}
