// Package gemini 封装了对 Gemini 文本生成服务的调用，用于帖子分析与学习主题推荐。
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"bright-starts-go/internal/config"
	"bright-starts-go/pkg/log"

	"google.golang.org/genai"
)

// 帖子分析的系统提示词：要求模型按固定 JSON 结构返回分类、回复内容和置信度。
const analyzeSystemPrompt = `Bạn là ABS Pro, một AI giáo dục thông minh của Bright Starts Academy.
Hãy phân tích bài viết và đưa ra phản hồi phù hợp:

1. Nếu là bài tập/câu hỏi học thuật: Hướng dẫn giải chi tiết, giải thích từng bước
2. Nếu là thảo luận học tập: Đưa ra góc nhìn sâu sắc, thông tin bổ sung hữu ích
3. Nếu là câu hỏi thường: Trả lời một cách thông minh và hữu ích
4. Nếu là chia sẻ cá nhân: Động viên tích cực và đưa ra lời khuyên phù hợp

Phản hồi bằng tiếng Việt, thân thiện và chuyên nghiệp. Phản hồi phải có giá trị giáo dục cao.`

// 学习主题推荐的系统提示词。
const suggestSystemPrompt = `Dựa vào nội dung bài viết, hãy đề xuất 3-5 chủ đề học tập liên quan mà học sinh có thể quan tâm.
Trả về dạng mảng JSON các string ngắn gọn.`

// fallbackResponse 是分析失败时使用的固定鼓励回复。
const fallbackResponse = "Cảm ơn bạn đã chia sẻ! Đây là một chủ đề thú vị. Hãy tiếp tục học tập và khám phá nhé! 📚"

// 帖子分类枚举值。
const (
	TypeExercise   = "exercise"
	TypeDiscussion = "discussion"
	TypeQuestion   = "question"
	TypeGeneral    = "general"
)

// PostAnalysis 是对一篇帖子的分析结果。
type PostAnalysis struct {
	// Type 是帖子的分类，取值为 exercise/discussion/question/general。
	Type string `json:"type"`
	// Response 是建议发表的回复内容。
	Response string `json:"response"`
	// Confidence 是模型对该回复的置信度，取值 [0,1]。
	Confidence float64 `json:"confidence"`
}

// Client 定义了分析客户端的接口，便于在测试中替换为桩实现。
type Client interface {
	// AnalyzePost 分析帖子内容并生成回复。任何失败（网络、空响应、解析、
	// 结构不合法）都在此边界内被吞掉，返回固定的兜底结果，绝不向调用方返回错误。
	AnalyzePost(ctx context.Context, content string) *PostAnalysis
	// SuggestTopics 基于帖子内容推荐相关学习主题，失败时返回空列表。
	// 不在评论生成的主链路上。
	SuggestTopics(ctx context.Context, content string) []string
}

type geminiClient struct {
	cfg    config.GeminiConfig
	client *genai.Client
}

// NewClient 创建一个新的 Gemini 客户端。
func NewClient(ctx context.Context, cfg config.GeminiConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiClient{cfg: cfg, client: client}, nil
}

// FallbackAnalysis 返回分析失败时的兜底结果：general 分类、固定鼓励文案、0.5 置信度。
func FallbackAnalysis() *PostAnalysis {
	return &PostAnalysis{
		Type:       TypeGeneral,
		Response:   fallbackResponse,
		Confidence: 0.5,
	}
}

// AnalyzePost 调用主模型分析帖子。响应使用 JSON schema 约束输出结构。
func (c *geminiClient) AnalyzePost(ctx context.Context, content string) *PostAnalysis {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analyzeSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"type": {
					Type: genai.TypeString,
					Enum: []string{TypeExercise, TypeDiscussion, TypeQuestion, TypeGeneral},
				},
				"response":   {Type: genai.TypeString},
				"confidence": {Type: genai.TypeNumber},
			},
			Required: []string{"type", "response", "confidence"},
		},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(content), genCfg)
	if err != nil {
		log.Errorf("Gemini 帖子分析调用失败: %v", err)
		return FallbackAnalysis()
	}

	raw := extractText(result)
	if raw == "" {
		log.Warn("Gemini 帖子分析返回空响应，使用兜底回复")
		return FallbackAnalysis()
	}

	analysis, err := parseAnalysis([]byte(cleanJSON(raw)))
	if err != nil {
		log.Errorf("解析 Gemini 帖子分析结果失败: %v, raw: %s", err, raw)
		return FallbackAnalysis()
	}
	return analysis
}

// SuggestTopics 调用 flash 模型生成学习主题推荐。
func (c *geminiClient) SuggestTopics(ctx context.Context, content string) []string {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(suggestSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.cfg.FlashModel, genai.Text(content), genCfg)
	if err != nil {
		log.Errorf("Gemini 主题推荐调用失败: %v", err)
		return []string{}
	}

	raw := extractText(result)
	if raw == "" {
		return []string{}
	}

	var topics []string
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &topics); err != nil {
		log.Errorf("解析 Gemini 主题推荐结果失败: %v, raw: %s", err, raw)
		return []string{}
	}
	return topics
}

// extractText 从生成结果中取出第一个候选的文本内容。
func extractText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	cand := result.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return ""
	}
	return cand.Content.Parts[0].Text
}

// parseAnalysis 解析并校验模型返回的 JSON。
// 结构不合法（空回复、置信度越界）视为 schema 违例，返回错误由调用方兜底。
func parseAnalysis(raw []byte) (*PostAnalysis, error) {
	var analysis PostAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("invalid analysis json: %w", err)
	}
	if analysis.Response == "" {
		return nil, errors.New("analysis response is empty")
	}
	if analysis.Confidence < 0 || analysis.Confidence > 1 {
		return nil, fmt.Errorf("confidence out of range: %f", analysis.Confidence)
	}
	switch analysis.Type {
	case TypeExercise, TypeDiscussion, TypeQuestion, TypeGeneral:
	default:
		analysis.Type = TypeGeneral
	}
	return &analysis, nil
}

// cleanJSON 去掉模型偶尔包裹在 JSON 外的 markdown 代码块标记。
func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
