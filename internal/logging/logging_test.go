package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/opencode-ai/walletperm/pkg/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("expected Level to be InfoLevel, got %v", cfg.Level)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected Output to be os.Stderr")
	}
	if cfg.Pretty {
		t.Errorf("expected Pretty to be false")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"  debug  ", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(&types.LogConfig{Level: "debug", Pretty: true}, "")
	if cfg.Level != DebugLevel || !cfg.Pretty {
		t.Errorf("expected pretty debug config, got %+v", cfg)
	}

	if got := FromConfig(&types.LogConfig{Level: "debug"}, "ERROR").Level; got != ErrorLevel {
		t.Errorf("flag level should win, got %v", got)
	}
	if got := FromConfig(nil, "warn").Level; got != WarnLevel {
		t.Errorf("expected WarnLevel without a log section, got %v", got)
	}
	if got := FromConfig(nil, "").Level; got != InfoLevel {
		t.Errorf("expected InfoLevel by default, got %v", got)
	}
}

func TestComponentLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, Output: &buf})
	defer Init(DefaultConfig())

	log := Component("permission")
	log.Info().Msg("prompting")
	log.Warn().Str("requestID", "basket:app.example:todo").Msg("callback failed")

	output := buf.String()
	if strings.Contains(output, "prompting") {
		t.Errorf("info message should be filtered, got %s", output)
	}
	if !strings.Contains(output, `"component":"permission"`) {
		t.Errorf("expected component field, got %s", output)
	}
	if !strings.Contains(output, `"requestID":"basket:app.example:todo"`) {
		t.Errorf("expected requestID field, got %s", output)
	}
}

func TestInitWithPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, Pretty: true})
	defer Init(DefaultConfig())

	log := Component("wallet")
	log.Info().Msg("action recorded")

	if !strings.Contains(buf.String(), "action recorded") {
		t.Errorf("expected output to contain 'action recorded', got %s", buf.String())
	}
}
