package main

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func respondSuccess(c *gin.Context, status int, data any, message string) {
	c.JSON(status, SuccessResponse{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	logrus.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"status": status,
		"code":   code,
	}).Warn(message)
	c.JSON(status, resp)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}

func (s *AppServer) healthHandler(c *gin.Context) {
	respondSuccess(c, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": serviceName,
	}, "服务正常")
}

func (s *AppServer) checkLoginStatusHandler(c *gin.Context) {
	status, err := s.unfollowService.CheckLoginStatus(c.Request.Context())
	if errors.Is(err, ErrBrowserBusy) {
		respondError(c, http.StatusConflict, "BROWSER_BUSY", "取关任务进行中，请稍后再试", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STATUS_CHECK_FAILED", "检查登录状态失败", err)
		return
	}
	respondSuccess(c, http.StatusOK, status, "检查登录状态成功")
}

func (s *AppServer) startUnfollowHandler(c *gin.Context) {
	var req UnfollowRequest
	// 允许空 body（包括 chunked），全部使用默认配置
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "请求参数错误", err)
		return
	}

	info, err := s.unfollowService.StartRun(&req)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "请求参数错误", err)
		return
	}
	respondSuccess(c, http.StatusAccepted, info, "取关任务已创建")
}

func (s *AppServer) listRunsHandler(c *gin.Context) {
	respondSuccess(c, http.StatusOK, s.unfollowService.ListRuns(), "")
}

func (s *AppServer) getRunHandler(c *gin.Context) {
	info, err := s.unfollowService.GetRun(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "RUN_NOT_FOUND", "任务不存在", err)
		return
	}
	respondSuccess(c, http.StatusOK, info, "")
}

func (s *AppServer) cancelRunHandler(c *gin.Context) {
	err := s.unfollowService.CancelRun(c.Param("id"))
	switch {
	case errors.Is(err, ErrRunNotFound):
		respondError(c, http.StatusNotFound, "RUN_NOT_FOUND", "任务不存在", err)
	case errors.Is(err, ErrRunFinished):
		respondError(c, http.StatusConflict, "RUN_FINISHED", "任务已结束", err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, "CANCEL_FAILED", "取消任务失败", err)
	default:
		respondSuccess(c, http.StatusOK, nil, "任务已取消")
	}
}

func (s *AppServer) screenshotHandler(c *gin.Context) {
	path := c.Query("path")
	if _, err := screenshotURL(path); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "请求参数错误", err)
		return
	}

	result, err := s.unfollowService.Screenshot(c.Request.Context(), path)
	if errors.Is(err, ErrBrowserBusy) {
		respondError(c, http.StatusConflict, "BROWSER_BUSY", "取关任务进行中，请稍后再试", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "SCREENSHOT_FAILED", "截图失败", err)
		return
	}
	c.Data(http.StatusOK, result.MimeType, result.Data)
}
