package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

const (
	serviceName    = "x-unfollow"
	serviceVersion = "1.0.0"
)

// MCPContent 工具返回的单段内容
type MCPContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// MCPToolResult 工具处理结果，统一转换为 SDK 的 CallToolResult
type MCPToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

func textResult(text string) *MCPToolResult {
	return &MCPToolResult{Content: []MCPContent{{Type: "text", Text: text}}}
}

func errorResult(text string) *MCPToolResult {
	return &MCPToolResult{Content: []MCPContent{{Type: "text", Text: text}}, IsError: true}
}

func convertToMCPResult(result *MCPToolResult) *mcp.CallToolResult {
	contents := make([]mcp.Content, 0, len(result.Content))
	for _, c := range result.Content {
		switch c.Type {
		case "image":
			contents = append(contents, &mcp.ImageContent{Data: c.Data, MIMEType: c.MimeType})
		default:
			contents = append(contents, &mcp.TextContent{Text: c.Text})
		}
	}
	return &mcp.CallToolResult{Content: contents, IsError: result.IsError}
}

// StartUnfollowArgs start_unfollow 的参数
type StartUnfollowArgs struct {
	Handle              string   `json:"handle,omitempty" jsonschema:"要清理的账号 handle，不带 @；为空时使用当前登录账号"`
	RetryLimit          int      `json:"retry_limit,omitempty" jsonschema:"连续多少批没有成功取关就结束，默认 3"`
	MinDelaySeconds     float64  `json:"min_delay_seconds,omitempty" jsonschema:"每次取关后的最短等待秒数，默认 2"`
	MaxDelaySeconds     float64  `json:"max_delay_seconds,omitempty" jsonschema:"每次取关后的最长等待秒数，默认 4"`
	RowHoverProbability *float64 `json:"row_hover_probability,omitempty" jsonschema:"处理前先悬停所在行的概率，最大 1；不传或传 0 使用默认值 0.2，负数表示关闭"`
}

// RunIDArgs 按任务 ID 操作的参数
type RunIDArgs struct {
	RunID string `json:"run_id" jsonschema:"start_unfollow 返回的任务 ID"`
}

// ScreenshotArgs take_screenshot 的参数
type ScreenshotArgs struct {
	Path string `json:"path,omitempty" jsonschema:"x.com 站内路径，例如 /jack/following；为空时截取首页"`
}

// InitMCPServer 注册全部 MCP 工具
func InitMCPServer(appServer *AppServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serviceName,
		Version: serviceVersion,
	}, nil)

	registerTools(server, appServer)

	logrus.Info("MCP Server initialized with official SDK")
	return server
}

func registerTools(server *mcp.Server, appServer *AppServer) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "check_login_status",
			Description: "检查 X (Twitter) 登录状态",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
			return convertToMCPResult(appServer.handleCheckLoginStatus(ctx)), nil, nil
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "start_unfollow",
			Description: "在关注列表页面取关所有没有回关你的账号，后台运行并返回任务 ID",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, args StartUnfollowArgs) (*mcp.CallToolResult, any, error) {
			return convertToMCPResult(appServer.handleStartUnfollow(ctx, args)), nil, nil
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_unfollow_run",
			Description: "查询取关任务的状态和统计",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, args RunIDArgs) (*mcp.CallToolResult, any, error) {
			return convertToMCPResult(appServer.handleGetUnfollowRun(ctx, args)), nil, nil
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "cancel_unfollow_run",
			Description: "取消进行中的取关任务",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, args RunIDArgs) (*mcp.CallToolResult, any, error) {
			return convertToMCPResult(appServer.handleCancelUnfollowRun(ctx, args)), nil, nil
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "take_screenshot",
			Description: "打开 x.com 页面并返回截图",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, args ScreenshotArgs) (*mcp.CallToolResult, any, error) {
			return convertToMCPResult(appServer.handleTakeScreenshot(ctx, args)), nil, nil
		},
	)
}
