package log

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the service logger. When file is set, entries are also written
// as JSON to a size-rotated log file.
func New(levelEnv, file string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel) // default DEBUG

	if levelEnv != "" {
		if err := cfg.Level.UnmarshalText([]byte(levelEnv)); err != nil {
			fmt.Fprintf(os.Stderr, "bad LOG_LEVEL=%s, fallback to debug\n", levelEnv)
		}
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if file != "" {
		rotating := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MiB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), rotating, cfg.Level)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	return cfg.Build(opts...)
}

func Must(levelEnv, file string) *zap.Logger {
	l, err := New(levelEnv, file)
	if err != nil {
		panic(err)
	}
	return l
}

var digestKey atomic.Pointer[[]byte]

func init() { SetDigestKey("") }

// SetDigestKey keys Digest. An empty key is replaced by a random one, so
// digests then only correlate within a single process.
func SetDigestKey(key string) {
	k := []byte(key)
	if len(k) == 0 {
		k = make([]byte, 32)
		_, _ = rand.Read(k)
	}
	digestKey.Store(&k)
}

// Digest renders an identifier (email, username) as an HMAC-SHA256 hex
// string so requests can be correlated without logging the raw value.
func Digest(s string) zap.Field {
	mac := hmac.New(sha256.New, *digestKey.Load())
	mac.Write([]byte(s))
	return zap.String("user", hex.EncodeToString(mac.Sum(nil)))
}
