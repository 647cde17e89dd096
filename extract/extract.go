// Package extract 把模型输出解析成结构体的三级回退策略收敛到一处：
// 严格 JSON -> 从散文中提取的宽松 JSON -> 调用方提供的默认值。
//
// 教师的 planner 节点（agent/planner/planner.go）直接对模型输出调用
// json.Unmarshal，并留了一条 TODO："修复可能存在的markdown代码块标记问题"。
// 这里把那条 TODO 实现掉：先尝试整段严格解析，失败后剥掉 ```json 围栏和前后
// 散文再解析一次，两次都失败时调用方决定是否接受默认值，而不是让整条流水线
// 在这一步卡死。
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// JSON 尝试把 raw 解析进 out（out 必须是指针）。先整体严格解析，失败后剥离
// markdown 代码块围栏再解析，仍失败则取首尾散文之间的第一个 JSON 对象再解析。
// 全部失败返回 false（调用方此时应落到 schema 专属默认值）；字段类型不匹配
// 的尝试可能已经把部分字段写进 out，调用方不应依赖 out 保持原样。
func JSON(raw string, out any) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err == nil {
		return true
	}

	if body := stripFence(raw); body != raw {
		if err := json.Unmarshal([]byte(body), out); err == nil {
			return true
		}
	}

	if obj := firstJSONObject(raw); obj != "" {
		if err := json.Unmarshal([]byte(obj), out); err == nil {
			return true
		}
	}

	return false
}

// stripFence 剥掉 ```json ... ``` 或 ``` ... ``` 围栏，只保留围栏内的内容；
// 若找不到围栏原样返回
func stripFence(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// firstJSONObject 在散文中定位第一个平衡的 {...} 块，用于模型在 JSON 前后
// 附带解释性文字的情况
func firstJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inStr:
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
		case c == '"':
			inStr = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
