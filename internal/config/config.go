package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/walletperm/)
// 2. Project config (walletperm.json(c) and .walletperm/ under directory)
// 3. WALLETPERM_CONFIG file
// 4. WALLETPERM_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1-3. Global, project, then the WALLETPERM_CONFIG file
	for _, path := range ConfigFiles(directory) {
		loadOnce(path, filepath.Dir(path))
	}

	// 4. WALLETPERM_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("WALLETPERM_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Root keys are commonly stored with a trailing newline.
		value := strings.TrimRight(string(content), "\r\n")

		escaped := strings.ReplaceAll(value, "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.AdminOriginator != "" {
		target.AdminOriginator = source.AdminOriginator
	}
	if source.CacheTTL != "" {
		target.CacheTTL = source.CacheTTL
	}
	if source.DefaultGrantTTL != "" {
		target.DefaultGrantTTL = source.DefaultGrantTTL
	}

	if source.Permissions != nil {
		if target.Permissions == nil {
			target.Permissions = &types.PermissionsConfig{}
		}
		mergeFlags(target.Permissions, source.Permissions)
	}

	if source.Server != nil {
		if target.Server == nil {
			target.Server = &types.ServerConfig{}
		}
		if source.Server.Port != 0 {
			target.Server.Port = source.Server.Port
		}
		if source.Server.Hostname != "" {
			target.Server.Hostname = source.Server.Hostname
		}
		if source.Server.CORS != nil {
			target.Server.CORS = source.Server.CORS
		}
	}

	if source.Wallet != nil {
		if target.Wallet == nil {
			target.Wallet = &types.WalletConfig{}
		}
		if source.Wallet.StorageDir != "" {
			target.Wallet.StorageDir = source.Wallet.StorageDir
		}
		if source.Wallet.RootKey != "" {
			target.Wallet.RootKey = source.Wallet.RootKey
		}
	}

	if source.Log != nil {
		if target.Log == nil {
			target.Log = &types.LogConfig{}
		}
		if source.Log.Level != "" {
			target.Log.Level = source.Log.Level
		}
		if source.Log.Pretty {
			target.Log.Pretty = true
		}
	}
}

// mergeFlags copies every non-nil *bool flag of source onto target, so a
// later file can flip one flag without restating the others.
func mergeFlags(target, source *types.PermissionsConfig) {
	tv := reflect.ValueOf(target).Elem()
	sv := reflect.ValueOf(source).Elem()
	for i := 0; i < sv.NumField(); i++ {
		if f := sv.Field(i); f.Kind() == reflect.Pointer && !f.IsNil() {
			tv.Field(i).Set(f)
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if admin := os.Getenv("WALLETPERM_ADMIN_ORIGINATOR"); admin != "" {
		config.AdminOriginator = admin
	}

	if port := os.Getenv("WALLETPERM_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			if config.Server == nil {
				config.Server = &types.ServerConfig{}
			}
			config.Server.Port = n
		}
	}

	if level := os.Getenv("WALLETPERM_LOG_LEVEL"); level != "" {
		if config.Log == nil {
			config.Log = &types.LogConfig{}
		}
		config.Log.Level = level
	}

	if key := os.Getenv("WALLETPERM_ROOT_KEY"); key != "" {
		if config.Wallet == nil {
			config.Wallet = &types.WalletConfig{}
		}
		config.Wallet.RootKey = key
	}

	// Permission flags override (JSON)
	if permJSON := os.Getenv("WALLETPERM_PERMISSIONS"); permJSON != "" {
		var perm types.PermissionsConfig
		if err := json.Unmarshal([]byte(permJSON), &perm); err == nil {
			if config.Permissions == nil {
				config.Permissions = &types.PermissionsConfig{}
			}
			mergeFlags(config.Permissions, &perm)
		}
	}
}

// Save saves the configuration to a file. The wallet root key is never written.
func Save(config *types.Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	out := *config
	if out.Wallet != nil {
		w := *out.Wallet
		w.RootKey = ""
		out.Wallet = &w
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
