package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// configFileNames are tried in this order in every config directory.
var configFileNames = []string{"walletperm.json", "walletperm.jsonc"}

// Paths are the directories walletperm keeps its files in.
type Paths struct {
	Config string // $WALLETPERM_CONFIG_DIR or $XDG_CONFIG_HOME/walletperm
	Data   string // $XDG_DATA_HOME/walletperm, holds the local wallet
}

// GetPaths resolves the walletperm directories from the environment.
func GetPaths() *Paths {
	configDir := os.Getenv("WALLETPERM_CONFIG_DIR")
	if configDir == "" {
		configDir = filepath.Join(xdgHome("XDG_CONFIG_HOME", ".config"), "walletperm")
	}
	return &Paths{
		Config: configDir,
		Data:   filepath.Join(xdgHome("XDG_DATA_HOME", ".local", "share"), "walletperm"),
	}
}

// EnsurePaths creates the config and data directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Config, p.Data} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// WalletPath returns the default local wallet directory.
func (p *Paths) WalletPath() string {
	return filepath.Join(p.Data, "wallet")
}

// configDirs lists the directories Load reads walletperm.json(c) from, lowest
// precedence first. The WALLETPERM_CONFIG file is not included.
func configDirs(directory string) []string {
	dirs := []string{GetPaths().Config}
	if directory != "" {
		dirs = append(dirs, directory, filepath.Join(directory, ".walletperm"))
	}
	return dirs
}

// ConfigFiles returns every file Load would read for directory, in load
// order, whether or not it exists.
func ConfigFiles(directory string) []string {
	var files []string
	for _, dir := range configDirs(directory) {
		for _, name := range configFileNames {
			files = append(files, filepath.Join(dir, name))
		}
	}
	if configPath := os.Getenv("WALLETPERM_CONFIG"); configPath != "" {
		files = append(files, configPath)
	}
	return files
}

func xdgHome(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
}
