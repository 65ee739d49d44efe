package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/walletperm/pkg/types"
)

// isolate points HOME and the XDG config dir at a fresh temp dir and clears
// every WALLETPERM_ variable the loader reads.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	for _, v := range []string{
		"WALLETPERM_CONFIG", "WALLETPERM_CONFIG_CONTENT", "WALLETPERM_ADMIN_ORIGINATOR",
		"WALLETPERM_PORT", "WALLETPERM_LOG_LEVEL", "WALLETPERM_ROOT_KEY", "WALLETPERM_PERMISSIONS",
		"WALLETPERM_CONFIG_DIR",
	} {
		t.Setenv(v, "")
	}
	return tmpDir
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadProjectConfig(t *testing.T) {
	tmpDir := isolate(t)

	writeConfig(t, filepath.Join(tmpDir, ".walletperm", "walletperm.json"), `{
		"$schema": "https://walletperm.dev/config.json",
		"adminOriginator": "admin.wallet",
		"cacheTTL": "2m",
		"defaultGrantTTL": "168h",
		"permissions": {
			"seekProtocolPermissionsForSigning": false,
			"differentiatePrivilegedOperations": true
		},
		"server": {"port": 4097, "hostname": "0.0.0.0"},
		"log": {"level": "debug", "pretty": true}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "https://walletperm.dev/config.json", cfg.Schema)
	assert.Equal(t, "admin.wallet", cfg.AdminOriginator)
	assert.Equal(t, "2m", cfg.CacheTTL)
	assert.Equal(t, "168h", cfg.DefaultGrantTTL)

	require.NotNil(t, cfg.Permissions)
	require.NotNil(t, cfg.Permissions.SeekProtocolPermissionsForSigning)
	assert.False(t, *cfg.Permissions.SeekProtocolPermissionsForSigning)
	assert.True(t, *cfg.Permissions.DifferentiatePrivilegedOperations)
	assert.Nil(t, cfg.Permissions.SeekSpendingPermissions, "absent flags stay unset")

	assert.Equal(t, 4097, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Hostname)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestJSONCComments(t *testing.T) {
	tmpDir := isolate(t)

	writeConfig(t, filepath.Join(tmpDir, "walletperm.jsonc"), `{
		// This is a single-line comment
		"adminOriginator": "admin.wallet",
		/* This is a
		   multi-line comment */
		"permissions": {
			"seekSpendingPermissions": false, // inline comment
		}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "admin.wallet", cfg.AdminOriginator)
	assert.False(t, *cfg.Permissions.SeekSpendingPermissions)
}

func TestEnvInterpolation(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("TEST_ADMIN", "interpolated.admin")

	writeConfig(t, filepath.Join(tmpDir, ".walletperm", "walletperm.json"), `{
		"adminOriginator": "{env:TEST_ADMIN}"
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "interpolated.admin", cfg.AdminOriginator)
}

func TestFileInterpolation(t *testing.T) {
	tmpDir := isolate(t)

	keyHex := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.key"), []byte(keyHex+"\n"), 0600))

	writeConfig(t, filepath.Join(tmpDir, ".walletperm", "walletperm.json"), `{
		"wallet": {"rootKey": "{file:../root.key}"}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	require.NotNil(t, cfg.Wallet)
	assert.Equal(t, keyHex, cfg.Wallet.RootKey)
}

func TestFileInterpolationMissingFile(t *testing.T) {
	tmpDir := isolate(t)

	writeConfig(t, filepath.Join(tmpDir, "walletperm.json"), `{"adminOriginator": "{file:nope.txt}"}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "{file:nope.txt}", cfg.AdminOriginator)
}

func TestConfigMerge(t *testing.T) {
	tmpHome := isolate(t)
	tmpProject := t.TempDir()

	writeConfig(t, filepath.Join(tmpHome, ".config", "walletperm", "walletperm.json"), `{
		"adminOriginator": "global.admin",
		"cacheTTL": "10m",
		"permissions": {
			"seekBasketListingPermissions": false,
			"seekSpendingPermissions": false
		},
		"server": {"port": 5000}
	}`)

	writeConfig(t, filepath.Join(tmpProject, ".walletperm", "walletperm.json"), `{
		"adminOriginator": "project.admin",
		"permissions": {
			"seekSpendingPermissions": true
		},
		"server": {"hostname": "localhost"}
	}`)

	cfg, err := Load(tmpProject)
	require.NoError(t, err)

	// Project scalars override global ones
	assert.Equal(t, "project.admin", cfg.AdminOriginator)
	assert.Equal(t, "10m", cfg.CacheTTL)

	// Flags merge one by one
	assert.False(t, *cfg.Permissions.SeekBasketListingPermissions)
	assert.True(t, *cfg.Permissions.SeekSpendingPermissions)

	// Nested sections merge field by field
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Hostname)
}

func TestEnvVarOverride(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("WALLETPERM_ADMIN_ORIGINATOR", "env.admin")
	t.Setenv("WALLETPERM_PORT", "6001")
	t.Setenv("WALLETPERM_LOG_LEVEL", "warn")
	t.Setenv("WALLETPERM_PERMISSIONS", `{"seekGroupedPermission": false}`)

	writeConfig(t, filepath.Join(tmpDir, "walletperm.json"), `{
		"adminOriginator": "file.admin",
		"server": {"port": 4096},
		"permissions": {"seekSpendingPermissions": false}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "env.admin", cfg.AdminOriginator)
	assert.Equal(t, 6001, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, *cfg.Permissions.SeekGroupedPermission)
	assert.False(t, *cfg.Permissions.SeekSpendingPermissions, "env flags do not reset file flags")
}

func TestEnvPortNotANumber(t *testing.T) {
	isolate(t)
	t.Setenv("WALLETPERM_PORT", "eighty")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.Server)
}

func TestWALLETPERM_CONFIG(t *testing.T) {
	tmpDir := isolate(t)

	customConfigPath := filepath.Join(tmpDir, "custom-config.json")
	writeConfig(t, customConfigPath, `{"adminOriginator": "custom.admin"}`)
	t.Setenv("WALLETPERM_CONFIG", customConfigPath)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "custom.admin", cfg.AdminOriginator)
}

func TestWALLETPERM_CONFIG_CONTENT(t *testing.T) {
	isolate(t)
	t.Setenv("WALLETPERM_CONFIG_CONTENT", `{"adminOriginator": "inline.admin", "cacheTTL": "1m"}`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "inline.admin", cfg.AdminOriginator)
	assert.Equal(t, "1m", cfg.CacheTTL)
}

func TestInvalidFileIsSkipped(t *testing.T) {
	tmpDir := isolate(t)

	writeConfig(t, filepath.Join(tmpDir, "walletperm.json"), `{"adminOriginator": `)
	writeConfig(t, filepath.Join(tmpDir, ".walletperm", "walletperm.json"), `{"cacheTTL": "3m"}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, cfg.AdminOriginator)
	assert.Equal(t, "3m", cfg.CacheTTL)
}

func TestSaveOmitsRootKey(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "walletperm.json")

	cfg := &types.Config{
		AdminOriginator: "admin.wallet",
		Wallet:          &types.WalletConfig{StorageDir: "/var/lib/walletperm", RootKey: "secret"},
	}
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	var loaded types.Config
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, "admin.wallet", loaded.AdminOriginator)
	assert.Equal(t, "/var/lib/walletperm", loaded.Wallet.StorageDir)

	// The caller's config is untouched.
	assert.Equal(t, "secret", cfg.Wallet.RootKey)
}

func TestGetPaths(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))

	paths := GetPaths()
	assert.Equal(t, filepath.Join(tmpDir, ".config", "walletperm"), paths.Config)
	assert.Equal(t, filepath.Join(tmpDir, "data", "walletperm", "wallet"), paths.WalletPath())

	t.Setenv("WALLETPERM_CONFIG_DIR", "/etc/walletperm")
	assert.Equal(t, "/etc/walletperm", GetPaths().Config)
}

func TestConfigFiles(t *testing.T) {
	tmpDir := isolate(t)
	global := filepath.Join(tmpDir, ".config", "walletperm")
	project := filepath.Join(tmpDir, "project")

	assert.Equal(t, []string{
		filepath.Join(global, "walletperm.json"),
		filepath.Join(global, "walletperm.jsonc"),
	}, ConfigFiles(""))

	t.Setenv("WALLETPERM_CONFIG", "/tmp/custom.json")
	files := ConfigFiles(project)
	require.Len(t, files, 7)
	assert.Equal(t, filepath.Join(project, ".walletperm", "walletperm.jsonc"), files[5])
	assert.Equal(t, "/tmp/custom.json", files[6])
}
