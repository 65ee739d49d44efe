// Package config provides configuration loading, merging, and path management for walletperm.
//
// # Configuration Loading
//
// Load searches for and merges configuration from multiple sources in
// priority order:
//
//  1. Global config (~/.config/walletperm/walletperm.json(c))
//  2. Project config (walletperm.json(c) and .walletperm/walletperm.json(c))
//  3. WALLETPERM_CONFIG file
//  4. WALLETPERM_CONFIG_CONTENT inline JSON
//  5. Environment variables
//
// Later sources override earlier ones. A file that fails to parse is skipped.
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with Comments) are accepted; comments and
// trailing commas are stripped with tidwall/jsonc.
//
// # Variable Interpolation
//
// Configuration files support two placeholders:
//   - {env:VAR_NAME} expands to an environment variable
//   - {file:path} expands to file contents with trailing newlines trimmed
//
// Relative file paths resolve against the config file's directory; ~/ expands
// to HOME.
//
//	{
//	  "adminOriginator": "{env:WALLET_ADMIN}",
//	  "wallet": {"rootKey": "{file:~/.walletperm/root.key}"}
//	}
//
// # Configuration Merging
//
// Scalars overwrite when set. Permission flags are *bool and merge one flag
// at a time, so a project file may relax a single check without restating
// the rest; flags nobody sets keep the restrictive default.
//
// # Environment Variable Overrides
//
//   - WALLETPERM_ADMIN_ORIGINATOR - the admin originator
//   - WALLETPERM_PORT - server port
//   - WALLETPERM_LOG_LEVEL - log level
//   - WALLETPERM_ROOT_KEY - hex root key for the local wallet
//   - WALLETPERM_PERMISSIONS - JSON object of permission flags
//   - WALLETPERM_CONFIG - path to a specific config file
//   - WALLETPERM_CONFIG_CONTENT - inline JSON configuration
//   - WALLETPERM_CONFIG_DIR - override the config directory location
//
// # Path Management
//
// Paths follow the XDG Base Directory layout (Data, Config, Cache, State),
// with APPDATA on Windows. The local wallet lives under Paths.WalletPath
// unless wallet.storageDir is set.
package config
