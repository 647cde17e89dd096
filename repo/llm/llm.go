package llm

import (
	"context"
	"time"

	openai3 "github.com/cloudwego/eino-ext/libs/acl/openai"

	"github.com/HildaM/logs/slog"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/getkin/kin-openapi/openapi3gen"
	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/entity/consts"
	"github.com/hildam/deer-flow-go/entity/model"
)

// modelCallTimeout 返回 §5 文档化的单次模型调用超时（Research.ModelTimeoutMS，
// 默认 60s），underlying SDK 用它给每次请求设一个 http.Client 超时
func modelCallTimeout() time.Duration {
	ms := conf.GetCfg().Research.ModelTimeoutMS
	if ms <= 0 {
		ms = 60_000
	}
	return time.Duration(ms) * time.Millisecond
}

// roleTemperature 是 §9.4 文档化的各角色默认采样温度，教师原本只有一个
// DefaultModel，这里按角色拆分，每个角色独立建模、独立调温；角色配置里显式
// 设置了 temperature 时以配置为准
var roleTemperature = map[string]float32{
	consts.RolePlanner:          0.3,
	consts.RoleSearcherAnalyzer: 0.5,
	consts.RoleAnalyzer:         0.3,
	consts.RoleWriter:           0.7,
	consts.RoleCritic:           0.2,
}

// resolveModel 取出角色绑定的模型配置，ModelID 为空时回退到 default_model 的
// 端点配置；温度仍取角色自己配置的值，未配置时取 roleTemperature
func resolveModel(role string) conf.Model {
	cfg := conf.GetCfg().Model
	var m conf.Model
	switch role {
	case consts.RolePlanner:
		m = cfg.Planner
	case consts.RoleSearcherAnalyzer:
		m = cfg.SearcherAnalyzer
	case consts.RoleAnalyzer:
		m = cfg.Analyzer
	case consts.RoleWriter:
		m = cfg.Writer
	case consts.RoleCritic:
		m = cfg.Critic
	default:
		m = cfg.DefaultModel
	}
	if m.ModelID == "" {
		temp := m.Temperature
		m = cfg.DefaultModel
		m.Temperature = temp
	}
	if m.Temperature == 0 {
		if t, ok := roleTemperature[role]; ok {
			m.Temperature = t
		}
	}
	return m
}

// New 按角色创建一个不带响应格式约束的 Chat 模型，供 ReAct agent 或自由文本
// 生成场景使用（Writer 的报告正文、开启插件工具时 Research 的 Analyze ReAct agent）
func New(ctx context.Context, role string) *openai.ChatModel {
	m := resolveModel(role)
	temp := m.Temperature
	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:       m.ModelID,
		BaseURL:     m.BaseURL,
		APIKey:      m.APIKey,
		Temperature: &temp,
		Timeout:     modelCallTimeout(),
	})
	if err != nil {
		slog.Fatal("llm.New(%s) failed, err: %v", role, err)
		return nil
	}
	return chat
}

// NewStructured 按角色创建一个 JSON Schema 约束输出的 Chat 模型，schemaFor
// 传入目标结构体的零值指针，响应格式由 openapi3gen 从结构体反射生成
func NewStructured(ctx context.Context, role, schemaName string, schemaFor any) *openai.ChatModel {
	m := resolveModel(role)
	temp := m.Temperature

	schemaRef, err := openapi3gen.NewSchemaRefForValue(schemaFor, nil)
	if err != nil {
		slog.Fatal("llm.NewStructured(%s) schema gen failed, err: %v", role, err)
		return nil
	}

	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:       m.ModelID,
		BaseURL:     m.BaseURL,
		APIKey:      m.APIKey,
		Temperature: &temp,
		Timeout:     modelCallTimeout(),
		ResponseFormat: &openai3.ChatCompletionResponseFormat{
			Type: openai3.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai3.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Strict: false,
				Schema: schemaRef.Value,
			},
		},
	})
	if err != nil {
		slog.Fatal("llm.NewStructured(%s) failed, err: %v", role, err)
		return nil
	}
	return chat
}

// NewPlannerModel 创建 Planner 阶段使用的结构化输出模型，约束为 model.Plan
func NewPlannerModel(ctx context.Context) *openai.ChatModel {
	return NewStructured(ctx, consts.RolePlanner, "plan", &model.Plan{})
}

// NewSearcherAnalyzerModel 创建 Research 子图 Analyze 步骤在开启插件工具时
// 使用的自由文本模型，驱动一个带工具调用能力的 ReAct agent
func NewSearcherAnalyzerModel(ctx context.Context) *openai.ChatModel {
	return New(ctx, consts.RoleSearcherAnalyzer)
}

// NewAnalyzerModel 创建 Analyze 步骤的结构化输出模型，约束为 model.AnalyzerOutput
func NewAnalyzerModel(ctx context.Context) *openai.ChatModel {
	return NewStructured(ctx, consts.RoleAnalyzer, "analyzer_output", &model.AnalyzerOutput{})
}

// NewWriterModel 创建 Writer 阶段使用的自由文本模型（报告带 [n] 引用标记）
func NewWriterModel(ctx context.Context) *openai.ChatModel {
	return New(ctx, consts.RoleWriter)
}

// NewCriticModel 创建 Critique 阶段的结构化输出模型，约束为 model.CritiqueScore
func NewCriticModel(ctx context.Context) *openai.ChatModel {
	return NewStructured(ctx, consts.RoleCritic, "critique", &model.CritiqueScore{})
}

// NewClarifyModel 创建 Clarify 阶段的结构化输出模型，复用一个匿名结构体
// 约束 needs_clarification/question/query_analysis/detected_topics 四个字段。Clarify 不在 §6 的五个逻辑
// 角色之列，绑定到 searcher_analyzer（temperature=0.5）而不是 planner，
// 因为它和 planner 共用一个偏保守的低温角色会让两个阶段在配置里拿到同一份
// 模型/温度绑定，没有独立调参的余地
func NewClarifyModel(ctx context.Context) *openai.ChatModel {
	return NewStructured(ctx, consts.RoleSearcherAnalyzer, "clarify", &struct {
		NeedsClarification bool   `json:"needs_clarification"`
		Question           string `json:"question"`
		QueryAnalysis      string `json:"query_analysis"`
		DetectedTopics     []string `json:"detected_topics"`
	}{})
}
