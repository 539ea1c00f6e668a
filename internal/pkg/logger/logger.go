package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/qs3c/fed_comment_server/config"
)

var encoderCfg = zapcore.EncoderConfig{
	MessageKey: "msg",
	NameKey:    "name",

	LevelKey:    "level",
	EncodeLevel: zapcore.CapitalLevelEncoder,

	CallerKey:    "caller",
	EncodeCaller: zapcore.ShortCallerEncoder,

	TimeKey:    "time",
	EncodeTime: zapcore.RFC3339TimeEncoder,
}

// New 根据配置创建日志；format 为 console 时输出可读格式
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return build(os.Stdout, cfg)
}

func build(w io.Writer, cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	return zap.New(
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level),
		zap.AddCaller(),
	), nil
}
