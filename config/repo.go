package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/barrystyle/libipfs-go/secio"
)

// ErrRepoExists is returned by InitRepo when path already holds a
// config file, mirroring ipfs_repo_init's "Directory already exists"
// early return.
var ErrRepoExists = errors.New("config: repo already initialized")

const identityKeyBits = 2048

// InitRepo creates a fresh repo directory at path: a 2048-bit RSA
// identity (identity.pem) and a default config.toml, matching
// make_ipfs_repository's "generate 2048-bit RSA keypair" + write-config
// sequence. It fails if the repo already exists.
func InitRepo(path string) (*secio.Identity, error) {
	configPath := filepath.Join(path, FileName)
	if _, err := os.Stat(configPath); err == nil {
		return nil, ErrRepoExists
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", configPath, err)
	}

	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("config: create repo directory %s: %w", path, err)
	}

	identity, err := secio.GenerateIdentity(identityKeyBits)
	if err != nil {
		return nil, fmt.Errorf("config: generate identity: %w", err)
	}

	cfg := Default(path)
	if err := saveIdentity(identity, cfg.IdentityKeyPath); err != nil {
		return nil, err
	}
	if err := cfg.Save(configPath); err != nil {
		return nil, err
	}
	return identity, nil
}

// LoadIdentity reads the PEM-encoded RSA private key at path and wraps
// it as a secio.Identity.
func LoadIdentity(path string) (*secio.Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read identity key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("config: %s is not PEM-encoded", path)
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("config: parse identity key %s: %w", path, err)
	}
	return secio.NewIdentity(priv)
}

func saveIdentity(identity *secio.Identity, path string) error {
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(identity.PrivateKey())}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return fmt.Errorf("config: write identity key %s: %w", path, err)
	}
	return nil
}
