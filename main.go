package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/xpzouying/x-unfollow/browser"
	"github.com/xpzouying/x-unfollow/configs"
	"github.com/xpzouying/x-unfollow/logging"
)

func main() {
	var (
		headless  bool
		binPath   string // 浏览器二进制文件路径
		port      string
		stdioMode bool // 是否使用 STDIO 模式
		username  string
		logFile   string
		logLevel  string
	)
	flag.BoolVar(&headless, "headless", true, "是否无头模式")
	flag.StringVar(&binPath, "bin", "", "浏览器二进制文件路径")
	flag.StringVar(&port, "port", ":18060", "端口")
	flag.BoolVar(&stdioMode, "stdio", false, "使用 STDIO 模式（用于 MCP 客户端）")
	flag.StringVar(&username, "user", "", "默认清理的账号 handle，为空时自动识别当前登录账号")
	flag.StringVar(&logFile, "log-file", "", "日志文件路径（可选，按大小滚动）")
	flag.StringVar(&logLevel, "log-level", "", "日志级别，默认读取 LOG_LEVEL")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("加载 .env 失败")
	}

	logging.Setup(logging.Config{Level: logLevel, File: logFile})

	if len(binPath) == 0 {
		binPath = os.Getenv("ROD_BROWSER_BIN")
	}

	configs.InitHeadless(headless)
	configs.SetBinPath(binPath)
	configs.SetUsername(username)

	manager := browser.GetGlobalManager()
	manager.SetConfig(headless, binPath, "")

	// 初始化服务
	unfollowService := NewUnfollowService(manager)

	// 创建应用服务器
	appServer := NewAppServer(unfollowService)

	if stdioMode {
		// 日志只写 stderr，标准输出留给 MCP 协议
		logrus.Info("启动 STDIO 模式 MCP 服务器")
		if err := appServer.StartSTDIO(); err != nil {
			logrus.Fatalf("failed to run STDIO server: %v", err)
		}
	} else {
		if err := appServer.Start(port); err != nil {
			logrus.Fatalf("failed to run server: %v", err)
		}
	}
}
