// Package credential stores account passwords in the OS keyring.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

// Keyring reads and writes secrets under a single keyring service.
type Keyring struct {
	ServiceName string
	FileDir     string
	Backends    []keyring.BackendType
}

// NewKeyring creates a Keyring for serviceName.
func NewKeyring(serviceName string) *Keyring {
	return &Keyring{
		ServiceName: serviceName,
		FileDir:     "~/.config/" + serviceName + "/credentials",
		Backends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
	}
}

func (k *Keyring) open() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              k.ServiceName,
		AllowedBackends:          k.Backends,
		FileDir:                  k.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(k.ServiceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("keyring.Open failed: %w", err)
	}
	return ring, nil
}

// Get returns the secret stored under key.
func (k *Keyring) Get(key string) (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores value under key, replacing any previous secret.
func (k *Keyring) Set(key, value string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}
