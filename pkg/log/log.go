// Copyright (c) 2024 Quizzler
// This is an alpha (internal) release and is not suitable for production. This source code is provided 'as is' and no
// warranties are given as to title or non-infringement, merchantability or fitness for purpose and, to the extent
// permitted by law, all liability for your use of the code is disclaimed. This source code is governed by Apache
// License 2.0 that can be found in the LICENSE file.

// Package log provides a global logger for the survey protocol.
package log

import (
	stdlog "log"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalConfig defines the global logger configurations.
type GlobalConfig struct {
	Zap                *zap.Config `json:"zap" yaml:"zap"`
	StderrRedirectFile *string     `json:"stderrRedirectFile" yaml:"stderrRedirectFile"`
	RedirectStdLog     bool        `json:"stdLogRedirect" yaml:"stdLogRedirect"`
	EcsIntegration     bool        `json:"ecsIntegration" yaml:"ecsIntegration"`
}

var (
	_globalCfg    GlobalConfig
	_logMu        sync.RWMutex
	_globalLogger *zap.Logger
	_subLoggers   map[string]*zap.Logger
)

func init() {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.Level.SetLevel(zap.InfoLevel)
	l, err := zapCfg.Build()
	if err != nil {
		stdlog.Println("Failed to initialize default logger:", err)
		os.Exit(1)
	}
	_globalLogger = l
}

// L wraps the global logger.
func L() *zap.Logger {
	_logMu.RLock()
	l := _globalLogger
	_logMu.RUnlock()
	return l
}

// S wraps the global sugared logger.
func S() *zap.SugaredLogger { return L().Sugar() }

// Logger returns the logger of the given name, or the global logger when no
// sub logger of the name was initialized.
func Logger(name string) *zap.Logger {
	_logMu.RLock()
	defer _logMu.RUnlock()
	if l, ok := _subLoggers[name]; ok {
		return l
	}
	return _globalLogger
}

// InitLoggers initializes the global logger and other sub loggers.
func InitLoggers(globalCfg GlobalConfig, subCfgs map[string]GlobalConfig, opts ...zap.Option) error {
	if _, exists := subCfgs["global"]; exists {
		return errors.New("'global' is a reserved name for the global logger")
	}
	subLoggers := make(map[string]*zap.Logger)
	for name, cfg := range subCfgs {
		l, err := newLogger(cfg, opts...)
		if err != nil {
			return errors.Wrapf(err, "failed to initialize sub logger %s", name)
		}
		subLoggers[name] = l.With(zap.String("subLogger", name))
	}
	globalLogger, err := newLogger(globalCfg, opts...)
	if err != nil {
		return errors.Wrap(err, "failed to initialize global logger")
	}

	_logMu.Lock()
	_globalCfg = globalCfg
	_globalLogger = globalLogger
	_subLoggers = subLoggers
	_logMu.Unlock()

	if globalCfg.RedirectStdLog {
		zap.RedirectStdLog(globalLogger)
	}
	return nil
}

func newLogger(cfg GlobalConfig, opts ...zap.Option) (*zap.Logger, error) {
	zapCfg := cfg.Zap
	if zapCfg == nil {
		c := zap.NewProductionConfig()
		zapCfg = &c
	}
	if cfg.StderrRedirectFile != nil {
		stderrF, err := os.OpenFile(*cfg.StderrRedirectFile, os.O_WRONLY|os.O_CREATE|os.O_SYNC|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open stderr redirect file")
		}
		if err := stderrF.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to close stderr redirect file")
		}
		zapCfg.ErrorOutputPaths = append(zapCfg.ErrorOutputPaths, *cfg.StderrRedirectFile)
	}
	if cfg.EcsIntegration {
		zapCfg.EncoderConfig = ecszap.ECSCompatibleEncoderConfig(zapCfg.EncoderConfig)
		l, err := zapCfg.Build(append(opts, ecszap.WrapCoreOption())...)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return zapCfg.Build(opts...)
}
