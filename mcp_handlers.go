package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xpzouying/x-unfollow/twitter"
)

// MCP 工具处理函数

// handleCheckLoginStatus 处理检查登录状态
func (s *AppServer) handleCheckLoginStatus(ctx context.Context) *MCPToolResult {
	logrus.Info("MCP: 检查登录状态")

	status, err := s.unfollowService.CheckLoginStatus(ctx)
	if err != nil {
		return errorResult("检查登录状态失败: " + err.Error())
	}

	if !status.IsLoggedIn {
		return textResult("当前未登录，请先在浏览器中登录 X")
	}
	if status.Handle == "" {
		return textResult("已登录")
	}
	return textResult(fmt.Sprintf("已登录: @%s", status.Handle))
}

// handleStartUnfollow 创建后台取关任务
func (s *AppServer) handleStartUnfollow(_ context.Context, args StartUnfollowArgs) *MCPToolResult {
	logrus.WithField("handle", args.Handle).Info("MCP: 启动取关任务")

	req := &UnfollowRequest{
		Handle:              strings.TrimPrefix(args.Handle, "@"),
		RetryLimit:          args.RetryLimit,
		MinDelaySeconds:     args.MinDelaySeconds,
		MaxDelaySeconds:     args.MaxDelaySeconds,
		RowHoverProbability: args.RowHoverProbability,
	}

	info, err := s.unfollowService.StartRun(req)
	if err != nil {
		return errorResult("启动取关任务失败: " + err.Error())
	}
	return textResult(fmt.Sprintf("取关任务已创建，任务 ID: %s。使用 get_unfollow_run 查询进度", info.ID))
}

// handleGetUnfollowRun 返回任务详情（JSON）
func (s *AppServer) handleGetUnfollowRun(_ context.Context, args RunIDArgs) *MCPToolResult {
	info, err := s.unfollowService.GetRun(args.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("查询任务 %s 失败: %v", args.RunID, err))
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return errorResult("序列化任务信息失败: " + err.Error())
	}
	return textResult(string(data))
}

func (s *AppServer) handleCancelUnfollowRun(_ context.Context, args RunIDArgs) *MCPToolResult {
	logrus.WithField("run_id", args.RunID).Info("MCP: 取消取关任务")

	if err := s.unfollowService.CancelRun(args.RunID); err != nil {
		return errorResult(fmt.Sprintf("取消任务 %s 失败: %v", args.RunID, err))
	}
	return textResult(fmt.Sprintf("任务 %s 已取消", args.RunID))
}

// handleTakeScreenshot 截图，文本 + 图片
func (s *AppServer) handleTakeScreenshot(ctx context.Context, args ScreenshotArgs) *MCPToolResult {
	logrus.WithField("path", args.Path).Info("MCP: 页面截图")

	result, err := s.unfollowService.Screenshot(ctx, args.Path)
	if err != nil {
		return errorResult("截图失败: " + err.Error())
	}

	target := args.Path
	if target == "" {
		target = strings.TrimPrefix(twitter.HomeURL, twitter.BaseURL)
	}
	return &MCPToolResult{Content: []MCPContent{
		{Type: "text", Text: "页面截图: " + target},
		{Type: "image", MimeType: result.MimeType, Data: result.Data},
	}}
}
