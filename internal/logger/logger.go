package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"kraken-ladder-go/internal/models"
)

const defaultLogFile = "logs/ladder.log"

var (
	mu         sync.RWMutex
	baseLogger *zap.Logger
)

// InitLogger builds the process-wide logger from cfg and returns it.
// Output "file" and "both" rotate through lumberjack.
func InitLogger(cfg models.LogConfig) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	output := strings.ToLower(cfg.Output)

	if output == "file" || output == "both" {
		file := cfg.File
		if file == "" {
			file = defaultLogFile
		}
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		// No color codes in files.
		fileEncoder := zapcore.NewConsoleEncoder(encoderConfig)
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level))
	}

	if output != "file" {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(os.Stdout), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	mu.Lock()
	baseLogger = l
	mu.Unlock()
	return l
}

// L returns the process-wide logger, or a development logger before InitLogger.
func L() *zap.Logger {
	mu.RLock()
	l := baseLogger
	mu.RUnlock()
	if l == nil {
		l, _ = zap.NewDevelopment()
	}
	return l
}

// S returns the process-wide sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}
