package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

// AppServer 同时承载 HTTP API 与 MCP 服务
type AppServer struct {
	unfollowService *UnfollowService
	mcpServer       *mcp.Server
	router          *gin.Engine
	httpServer      *http.Server
}

func NewAppServer(unfollowService *UnfollowService) *AppServer {
	s := &AppServer{unfollowService: unfollowService}
	s.mcpServer = InitMCPServer(s)
	s.router = setupRoutes(s)
	return s
}

// Start 启动 HTTP 服务，收到退出信号后优雅关闭
func (s *AppServer) Start(port string) error {
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("启动 HTTP 服务器: %s", port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logrus.Info("正在关闭服务器...")

	s.unfollowService.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.Warnf("服务器关闭异常: %v", err)
	}

	s.unfollowService.manager.CloseBrowser()
	logrus.Info("服务器已关闭")
	return nil
}

// StartSTDIO 以 STDIO 方式运行 MCP 服务，直到客户端断开或收到退出信号
func (s *AppServer) StartSTDIO() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer s.unfollowService.manager.CloseBrowser()
	defer s.unfollowService.Shutdown()

	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
