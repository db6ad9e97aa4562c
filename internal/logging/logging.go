package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log 全局日志入口，带 service 字段；测试中也可直接使用
var Log = logrus.NewEntry(logrus.StandardLogger())

// Init 根据环境初始化日志：prod 输出 JSON，其它环境输出便于阅读的文本
func Init(service, env, level string) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(parseLevel(level))

	if env == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Log = logger.WithFields(logrus.Fields{
		"service":        service,
		"is_development": env != "prod",
	})
}

func parseLevel(raw string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
