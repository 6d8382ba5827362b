package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	// Level 日志级别，为空时读取 LOG_LEVEL，再为空使用 info
	Level string
	// File 非空时同时写入该文件，按大小滚动
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool
}

// Setup 配置全局 logrus，返回实际生效的级别
func Setup(cfg Config) logrus.Level {
	levelName := cfg.Level
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(levelName))
	if err != nil {
		level = logrus.InfoLevel
		if levelName != "" {
			logrus.WithField("attempted_level", levelName).Warn("invalid log level, defaulting to info")
		}
	}
	logrus.SetLevel(level)

	if cfg.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    withDefault(cfg.MaxSizeMB, 10),
			MaxBackups: withDefault(cfg.MaxBackups, 5),
			MaxAge:     withDefault(cfg.MaxAgeDays, 7),
		})
	}
	logrus.SetOutput(out)

	return level
}

func withDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
