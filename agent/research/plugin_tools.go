// plugin_tools.go 给 Analyze 步骤加一条可选路径：当 research.enable_plugin_tools
// 打开时，分析不再是一次不带工具的结构化模型调用，而是一个可以调用计算器、
// 代码执行等 MCP 插件工具的 ReAct agent。
//
// 这段逻辑直接沿用 agent/coder/coder.go 的做法：按名称/描述关键词从全部 MCP
// 工具里过滤出一个子集，再用 react.NewAgent + comm.ModifyInputFunc +
// comm.ToolCallChecker 组一个智能体。教师那里过滤 "python" 关键词把专业工具
// 留给代码生成任务；这里反过来排除掉 "search" 后缀的工具（那些工具已经由
// search.Provider 独占管理），把其余的插件工具留给分析步骤。
package research

import (
	"context"
	"strings"

	"github.com/HildaM/logs/slog"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/hildam/deer-flow-go/agent/comm"
	"github.com/hildam/deer-flow-go/entity/conf"
	"github.com/hildam/deer-flow-go/repo/mcp"
)

// newPluginToolAnalyzer 构建一个可以调用非搜索类 MCP 工具的 ReAct agent，
// 供 analyze 在 enable_plugin_tools=true 时使用
func newPluginToolAnalyzer(ctx context.Context, analyzer *openai.ChatModel) (*react.Agent, error) {
	allTools, err := mcp.GetMCPTools(ctx)
	if err != nil {
		slog.Error("research.newPluginToolAnalyzer failed, get mcp tools err = %+v", err)
		return nil, err
	}

	var pluginTools []tool.BaseTool
	for _, t := range allTools {
		info, err := t.Info(ctx)
		if err != nil {
			slog.Error("research.newPluginToolAnalyzer failed, get tool info err = %+v", err)
			continue
		}
		if strings.HasSuffix(strings.ToLower(info.Name), "search") {
			continue
		}
		pluginTools = append(pluginTools, t)
	}
	slog.Debug("research.newPluginToolAnalyzer debug, plugin tools = %+v", pluginTools)

	return react.NewAgent(ctx, &react.AgentConfig{
		MaxStep:               conf.GetCfg().Setting.AgentMaxStep,
		ToolCallingModel:      analyzer,
		ToolsConfig:           compose.ToolsNodeConfig{Tools: pluginTools},
		MessageModifier:       comm.ModifyInputFunc,
		StreamToolCallChecker: comm.ToolCallChecker,
	})
}

// runPluginAnalysis 驱动一次 ReAct 分析回合，最终消息内容按同样的 JSON 契约解析
func runPluginAnalysis(ctx context.Context, agent *react.Agent, messages []*schema.Message) (*schema.Message, error) {
	return agent.Generate(ctx, messages)
}
