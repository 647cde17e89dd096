package model

// Plan 是 Planner 阶段的产出：2-5 条英文搜索查询、2-6 个关注领域，以及一个
// 影响 Supervisor 策略选择的深度等级。
type Plan struct {
	Queries     []string `json:"queries"`
	FocusAreas  []string `json:"focus_areas"`
	Depth       int      `json:"depth"` // 1=单一方面 2=多方面综述（默认） 3=深度对比分析
}

// Strategy 是 Supervisor 阶段的产出，决定 Research 子图用顺序深挖还是并行
// 广度模式执行。
type Strategy struct {
	Mode           string `json:"mode"` // sequential | parallel
	MaxParallelism int    `json:"max_parallelism"`
	MaxIterations  int    `json:"max_iterations"`
}
