package logger

import (
	"io"
	"os"
	"path/filepath"

	"iamcore/pkg/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger = logrus.New()

// Initialize 初始化日志
func Initialize(cfg *config.Config) error {
	Logger = New(cfg.Log)
	if cfg.Log.FilePath == "" {
		return nil
	}

	// 创建日志目录
	logDir := filepath.Dir(cfg.Log.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	// 配置日志轮转
	rotateLogger := &lumberjack.Logger{
		Filename:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}

	// 同时输出到文件和控制台
	Logger.SetOutput(io.MultiWriter(os.Stdout, rotateLogger))
	return nil
}

// New 按配置创建日志实例，只输出到控制台
func New(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}
	log.SetOutput(os.Stdout)
	return log
}

// GetLogger 获取日志实例
func GetLogger() *logrus.Logger {
	return Logger
}

// Discard 测试用的静默日志
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
