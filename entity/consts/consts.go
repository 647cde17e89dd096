package consts

const (
	GraphName = "deep_research_agent" // 代理图名称，用于标识整个研究工作流
)

// 图节点名字，每个名字对应 graph 包中注册的一个 stage 节点
const (
	Clarify    = "clarify"    // 澄清：判断问题是否足够具体，必要时短路并提出澄清问题
	Planner    = "planner"    // 规划：产出搜索查询、关注领域与研究深度
	Supervisor = "supervisor" // 监督：选择顺序深挖或并行广度策略
	Research   = "research"   // 研究子图：Search -> Read -> Analyze 的循环/并行执行
	Compress   = "compress"   // 压缩：去重、合并发现，产出引用
	Writer     = "writer"     // 写作：生成带引用标记的最终报告
	Critique   = "critique"   // 评审：完整性/准确性/相关性/清晰度打分
)

// GetStageNameList 返回所有 stage 节点名字，顺序与依赖顺序一致
func GetStageNameList() []string {
	return []string{
		Clarify,
		Planner,
		Supervisor,
		Research,
		Compress,
		Writer,
		Critique,
	}
}

// 研究策略模式
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

// 页面抓取状态
const (
	PageStatusOK      = "ok"
	PageStatusBlocked = "blocked"
	PageStatusEmpty   = "empty"
	PageStatusError   = "error"
)

// Analyze 阶段给出的下一步动作
const (
	AnalyzeActionContinue = "continue"
	AnalyzeActionFinish   = "finish"
)

// 模型角色，每个角色绑定独立的采样温度与端点
const (
	RolePlanner          = "planner"
	RoleSearcherAnalyzer = "searcher_analyzer"
	RoleAnalyzer         = "analyzer"
	RoleWriter           = "writer"
	RoleCritic           = "critic"
)

// GetModelRoleList 返回全部模型角色
func GetModelRoleList() []string {
	return []string{
		RolePlanner,
		RoleSearcherAnalyzer,
		RoleAnalyzer,
		RoleWriter,
		RoleCritic,
	}
}

// 澄清中断后，等待用户回答时使用的反馈动作
const (
	ClarificationAnswered = "answered" // 用户已经回答了澄清问题
)
