package conf

// MCPServerConfig MCP服务器配置
type MCPServerConfig struct {
	Command string            `yaml:"command" mapstructure:"command"`             // MCP服务器启动命令
	Args    []string          `yaml:"args" mapstructure:"args"`                   // 命令行参数列表
	Env     map[string]string `yaml:"env,omitempty" mapstructure:"env,omitempty"` // 环境变量映射，可选配置
}

// MCPConfig MCP配置
type MCPConfig struct {
	Servers       map[string]MCPServerConfig `yaml:"servers" mapstructure:"servers"`               // MCP服务器配置映射，key为服务器名称
	InitTimeoutMS int                        `yaml:"init_timeout_ms" mapstructure:"init_timeout_ms"` // 单个服务器 Initialize 调用的超时（ListTools 不受它约束）
}

// Model 单个模型配置
type Model struct {
	ModelID     string  `yaml:"model_id" mapstructure:"model_id"`         // 模型ID
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`         // 模型服务的基础URL地址
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`           // 模型服务的API密钥
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`   // 采样温度
}

// ModelConfig 按角色绑定的模型配置。§6 规定了五个逻辑端点：planner、
// searcher_analyzer、analyzer、writer、critic，每个角色都有独立的采样温度
type ModelConfig struct {
	DefaultModel    Model `yaml:"default_model" mapstructure:"default_model"`         // 兜底默认模型
	Planner         Model `yaml:"planner" mapstructure:"planner"`                     // 温度 0.3
	SearcherAnalyzer Model `yaml:"searcher_analyzer" mapstructure:"searcher_analyzer"` // 温度 0.5
	Analyzer        Model `yaml:"analyzer" mapstructure:"analyzer"`                   // 温度 0.3
	Writer          Model `yaml:"writer" mapstructure:"writer"`                       // 温度 0.7
	Critic          Model `yaml:"critic" mapstructure:"critic"`                       // 温度 0.2
}

// SettingConfig 应用运行配置
type SettingConfig struct {
	MaxPlanIterations int `yaml:"max_plan_iterations" mapstructure:"max_plan_iterations"` // 最大计划迭代次数
	TotalMaxRound     int `yaml:"total_max_round" mapstructure:"total_max_round"`         // 全局 agent 最大执行轮数
	AgentMaxStep      int `yaml:"agent_max_step" mapstructure:"agent_max_step"`           // 每个 agent 最大执行步骤数
	MaxLimitToken     int `yaml:"max_limit_token" mapstructure:"max_limit_token"`         // 最大限制token数
}

// ResearchConfig 是 §6 配置面文档化的全部研究引擎参数
type ResearchConfig struct {
	MaxParallelismCap      int     `yaml:"max_parallelism_cap" mapstructure:"max_parallelism_cap"`
	MaxIterationsCap       int     `yaml:"max_iterations_cap" mapstructure:"max_iterations_cap"`
	FetchConcurrency       int     `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
	FetchTimeoutMS         int     `yaml:"fetch_timeout_ms" mapstructure:"fetch_timeout_ms"`
	SearchTimeoutMS        int     `yaml:"search_timeout_ms" mapstructure:"search_timeout_ms"`
	ModelTimeoutMS         int     `yaml:"model_timeout_ms" mapstructure:"model_timeout_ms"`
	BodyTruncateBytes      int     `yaml:"body_truncate_bytes" mapstructure:"body_truncate_bytes"`
	CompressionTargetRatio float64 `yaml:"compression_target_ratio" mapstructure:"compression_target_ratio"`
	JaccardDedupThreshold  float64 `yaml:"jaccard_dedup_threshold" mapstructure:"jaccard_dedup_threshold"`
	OverallDeadlineMS      int     `yaml:"overall_deadline_ms" mapstructure:"overall_deadline_ms"`
	EnablePluginTools      bool    `yaml:"enable_plugin_tools" mapstructure:"enable_plugin_tools"`
}

// AppConfig 应用配置
type AppConfig struct {
	MCP      MCPConfig      `yaml:"mcp" mapstructure:"mcp"`             // MCP服务相关配置
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`         // 大语言模型相关配置
	Setting  SettingConfig  `yaml:"setting" mapstructure:"setting"`     // 应用运行时配置参数
	Research ResearchConfig `yaml:"research" mapstructure:"research"`  // 研究引擎配置参数
}
