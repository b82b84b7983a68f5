package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"moul.io/zapfilter"
)

// FileConfig is the content of a log config file
//
// Example:
//
//	level: debug
//	filter: "info+:* debug+:race.loop*"
type FileConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Filter string `yaml:"filter"`
}

func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log config: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse log config %s: %w", path, err)
	}
	return &cfg, nil
}

// WithFilter restricts log entries by logger name and level using zapfilter rules.
// An empty rule set keeps the core unchanged.
func WithFilter(rules string) (Option, error) {
	if rules == "" {
		return zap.WrapCore(func(c zapcore.Core) zapcore.Core { return c }), nil
	}
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid log filter %q: %w", rules, err)
	}
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}), nil
}
