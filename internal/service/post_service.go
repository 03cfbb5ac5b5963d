package service

import (
	"context"
	"fmt"
	"time"

	"bright-starts-go/internal/model"
	"bright-starts-go/internal/repository"
	"bright-starts-go/pkg/cache"
	"bright-starts-go/pkg/log"
	"bright-starts-go/pkg/tasks"
)

// feedFirstPageCacheKey 是动态流首页在进程内缓存中的键。
const feedFirstPageCacheKey = "feed:page:1"

// PostEventPublisher 把帖子创建事件投递给 AI 响应链路（生产环境为 Kafka）。
type PostEventPublisher interface {
	PublishPostCreated(task tasks.PostCreatedTask) error
}

// PostIndexer 维护帖子的全文检索索引（生产环境为 Elasticsearch）。
type PostIndexer interface {
	IndexPost(ctx context.Context, doc model.EsPost) error
	SearchPosts(ctx context.Context, query string, size int) ([]model.EsPost, error)
}

// FeedPage 是动态流的一页数据。
type FeedPage struct {
	Posts []model.Post `json:"posts"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}

// PostService 接口定义了帖子与评论相关的业务操作。
type PostService interface {
	CreatePost(ctx context.Context, userID uint, content, mediaURL string) (*model.Post, error)
	GetFeed(ctx context.Context, page, size int) (*FeedPage, error)
	GetPost(ctx context.Context, postID uint) (*model.Post, []model.Comment, error)
	AddComment(ctx context.Context, postID, userID uint, content string) (*model.Comment, error)
	SearchPosts(ctx context.Context, query string) ([]model.EsPost, error)
}

// postService 是 PostService 接口的实现。
type postService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	memCache    *cache.MemoryCache
	publisher   PostEventPublisher
	indexer     PostIndexer
	responder   AssistantService
	notifier    FeedNotifier
}

// NewPostService 创建一个新的 PostService 实例。
// publisher/indexer/notifier 均可为 nil，对应能力将被跳过。
func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	memCache *cache.MemoryCache,
	publisher PostEventPublisher,
	indexer PostIndexer,
	responder AssistantService,
	notifier FeedNotifier,
) PostService {
	return &postService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
		memCache:    memCache,
		publisher:   publisher,
		indexer:     indexer,
		responder:   responder,
		notifier:    notifier,
	}
}

// CreatePost 创建一条帖子，并把后续动作全部做成"尽力而为"：
// 检索索引、事件投递、动态推送任何一环失败都不影响发帖本身成功返回。
func (s *postService) CreatePost(ctx context.Context, userID uint, content, mediaURL string) (*model.Post, error) {
	post := &model.Post{
		UserID:   userID,
		Content:  content,
		MediaURL: mediaURL,
	}
	if err := s.postRepo.Create(post); err != nil {
		return nil, fmt.Errorf("创建帖子失败: %w", err)
	}

	// 新帖让缓存的动态流首页失效
	s.memCache.Delete(feedFirstPageCacheKey)

	// 写入全文检索索引（尽力而为）
	if s.indexer != nil {
		doc := model.EsPost{
			PostID:    post.ID,
			UserID:    post.UserID,
			Content:   post.Content,
			CreatedAt: post.CreatedAt,
		}
		if author, err := s.userRepo.FindByID(userID); err == nil {
			doc.Username = author.Username
		}
		if err := s.indexer.IndexPost(ctx, doc); err != nil {
			log.Errorf("帖子 %d 写入检索索引失败: %v", post.ID, err)
		}
	}

	if s.notifier != nil {
		s.notifier.Broadcast(EventPostCreated, post)
	}

	// 通知 AI 响应链路。事件投递失败时降级为进程内直接触发，
	// 发帖请求本身从不等待 AI 的处理结果。
	task := tasks.PostCreatedTask{PostID: post.ID, UserID: post.UserID, Content: post.Content}
	if s.publisher != nil {
		if err := s.publisher.PublishPostCreated(task); err != nil {
			log.Errorf("帖子 %d 事件投递失败，降级为进程内处理: %v", post.ID, err)
			s.dispatchInProcess(task)
		}
	} else {
		s.dispatchInProcess(task)
	}

	return post, nil
}

// dispatchInProcess 在本进程内异步触发 AI 响应处理。
func (s *postService) dispatchInProcess(task tasks.PostCreatedTask) {
	if s.responder == nil {
		return
	}
	go s.responder.ProcessNewPost(context.Background(), task.PostID, task.Content)
}

// GetFeed 分页返回最新的帖子，首页结果走进程内缓存。
func (s *postService) GetFeed(ctx context.Context, page, size int) (*FeedPage, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	// 只缓存首页：它承担了绝大部分读流量，其余页直接查库
	cacheable := page == 1 && size == 20
	if cacheable {
		if cached, ok := s.memCache.Get(feedFirstPageCacheKey); ok {
			if feed, ok := cached.(*FeedPage); ok {
				return feed, nil
			}
		}
	}

	posts, total, err := s.postRepo.FindRecent((page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("查询动态流失败: %w", err)
	}

	feed := &FeedPage{Posts: posts, Total: total, Page: page, Size: size}
	if cacheable {
		s.memCache.Set(feedFirstPageCacheKey, feed, time.Minute)
	}
	return feed, nil
}

// GetPost 返回一条帖子及其全部评论。
func (s *postService) GetPost(ctx context.Context, postID uint) (*model.Post, []model.Comment, error) {
	post, err := s.postRepo.FindByID(postID)
	if err != nil {
		return nil, nil, err
	}
	comments, err := s.commentRepo.FindByPostID(postID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询帖子评论失败: %w", err)
	}
	return post, comments, nil
}

// AddComment 为一条帖子创建用户评论。
func (s *postService) AddComment(ctx context.Context, postID, userID uint, content string) (*model.Comment, error) {
	// 先确认帖子存在
	if _, err := s.postRepo.FindByID(postID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:  postID,
		UserID:  userID,
		Content: content,
	}
	if err := s.commentRepo.Create(comment); err != nil {
		return nil, fmt.Errorf("创建评论失败: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Broadcast(EventCommentCreated, comment)
	}
	return comment, nil
}

// SearchPosts 在全文索引上检索帖子。
func (s *postService) SearchPosts(ctx context.Context, query string) ([]model.EsPost, error) {
	if s.indexer == nil {
		return []model.EsPost{}, nil
	}
	return s.indexer.SearchPosts(ctx, query, 20)
}
