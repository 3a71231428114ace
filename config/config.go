// Package config decodes and persists the on-disk node configuration:
// bootstrap multiaddrs, swarm/API listen multiaddrs, and the path to the
// identity key file, the same fields the teacher's Options struct
// (node/popn.go) carries as flags rather than a config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultSwarmPort is the port ipfs_repo_init (original_source/libipfs/repo/init.c)
// hardcodes for a freshly initialized repository.
const DefaultSwarmPort = 4001

// DefaultAPIPort is this repo's default local control-socket port; the
// original C implementation uses a unix socket instead (teacher's
// Options.SocketPath plays the same role), but spec.md's listen
// multiaddrs are TCP throughout, so the default here stays consistent
// with that.
const DefaultAPIPort = 5001

// FileName is the config file's name inside a repo directory.
const FileName = "config.toml"

// IdentityFileName is the PEM-encoded identity key's name inside a repo
// directory.
const IdentityFileName = "identity.pem"

// Config is the decoded contents of a repo's config.toml.
type Config struct {
	BootstrapPeers  []string `toml:"bootstrap_peers"`
	SwarmListenAddr string   `toml:"swarm_listen_addr"`
	APIListenAddr   string   `toml:"api_listen_addr"`
	IdentityKeyPath string   `toml:"identity_key_path"`
}

// Default returns the config a fresh repo at path is initialized with.
func Default(path string) Config {
	return Config{
		SwarmListenAddr: fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", DefaultSwarmPort),
		APIListenAddr:   fmt.Sprintf("/ip4/127.0.0.1/tcp/%d", DefaultAPIPort),
		IdentityKeyPath: filepath.Join(path, IdentityFileName),
	}
}

// Load decodes the config file at path.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return c, nil
}

// Save encodes c to path, creating or truncating the file.
func (c Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}

// RepoPath resolves the repo directory the same way
// ipfs_repo_get_home_directory does: an explicit override first, then
// IPFS_PATH, then $HOME/.ipfs.
func RepoPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if p, ok := os.LookupEnv("IPFS_PATH"); ok && p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ipfs"), nil
}
