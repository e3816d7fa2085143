package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/mail-mcp/internal/config"
)

type secretsMock struct {
	values map[string]string
	calls  []string
}

func (m *secretsMock) Get(key string) (string, error) {
	m.calls = append(m.calls, key)
	v, ok := m.values[key]
	if !ok {
		return "", errors.New("secret not found")
	}
	return v, nil
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	cases := []struct {
		name     string
		env      map[string]string
		secrets  *secretsMock
		expected *config.Config
	}{
		{
			name: "defaults with smtp derived from imap",
			env: map[string]string{
				"EMAIL_USER":     "me@example.com",
				"EMAIL_PASSWORD": "secret",
				"IMAP_HOST":      "mail.example.com",
			},
			expected: &config.Config{
				IMAP: config.IMAP{
					Host:        "mail.example.com",
					Port:        993,
					User:        "me@example.com",
					Password:    "secret",
					TLS:         true,
					TLSVerify:   true,
					AuthTimeout: 10 * time.Second,
				},
				SMTP: config.SMTP{
					Host:      "mail.example.com",
					Port:      465,
					User:      "me@example.com",
					Password:  "secret",
					Secure:    true,
					TLSVerify: true,
				},
				From: "me@example.com",
			},
		},
		{
			name: "explicit smtp on submission port",
			env: map[string]string{
				"EMAIL_USER":        "me@example.com",
				"EMAIL_PASSWORD":    "secret",
				"EMAIL_FROM":        "Me <me@example.com>",
				"IMAP_HOST":         "imap.example.com",
				"IMAP_PORT":         "143",
				"IMAP_TLS":          "false",
				"IMAP_TLS_VERIFY":   "false",
				"IMAP_AUTH_TIMEOUT": "3s",
				"SMTP_HOST":         "smtp.example.com",
				"SMTP_PORT":         "587",
				"SMTP_USER":         "relay",
				"SMTP_PASSWORD":     "relay-secret",
			},
			expected: &config.Config{
				IMAP: config.IMAP{
					Host:        "imap.example.com",
					Port:        143,
					User:        "me@example.com",
					Password:    "secret",
					AuthTimeout: 3 * time.Second,
				},
				SMTP: config.SMTP{
					Host:     "smtp.example.com",
					Port:     587,
					User:     "relay",
					Password: "relay-secret",
				},
				From: "Me <me@example.com>",
			},
		},
		{
			name: "auth timeout in milliseconds and smtp verification override",
			env: map[string]string{
				"EMAIL_USER":        "me@example.com",
				"EMAIL_PASSWORD":    "secret",
				"IMAP_HOST":         "mail.example.com",
				"IMAP_AUTH_TIMEOUT": "2500",
				"SMTP_TLS_VERIFY":   "false",
			},
			expected: &config.Config{
				IMAP: config.IMAP{
					Host:        "mail.example.com",
					Port:        993,
					User:        "me@example.com",
					Password:    "secret",
					TLS:         true,
					TLSVerify:   true,
					AuthTimeout: 2500 * time.Millisecond,
				},
				SMTP: config.SMTP{
					Host:     "mail.example.com",
					Port:     465,
					User:     "me@example.com",
					Password: "secret",
					Secure:   true,
				},
				From: "me@example.com",
			},
		},
		{
			name: "smtp disabled",
			env: map[string]string{
				"EMAIL_USER":     "me@example.com",
				"EMAIL_PASSWORD": "secret",
				"IMAP_HOST":      "mail.example.com",
				"SMTP_HOST":      "smtp.example.com",
				"SMTP_ENABLED":   "false",
			},
			expected: &config.Config{
				IMAP: config.IMAP{
					Host:        "mail.example.com",
					Port:        993,
					User:        "me@example.com",
					Password:    "secret",
					TLS:         true,
					TLSVerify:   true,
					AuthTimeout: 10 * time.Second,
				},
				From: "me@example.com",
			},
		},
		{
			name: "password from keyring",
			env: map[string]string{
				"EMAIL_USER": "me@example.com",
				"IMAP_HOST":  "mail.example.com",
				"SMTP_PORT":  "2525",
			},
			secrets: &secretsMock{values: map[string]string{"me@example.com": "from-keyring"}},
			expected: &config.Config{
				IMAP: config.IMAP{
					Host:        "mail.example.com",
					Port:        993,
					User:        "me@example.com",
					Password:    "from-keyring",
					TLS:         true,
					TLSVerify:   true,
					AuthTimeout: 10 * time.Second,
				},
				SMTP: config.SMTP{
					Host:      "mail.example.com",
					Port:      2525,
					User:      "me@example.com",
					Password:  "from-keyring",
					TLSVerify: true,
				},
				From: "me@example.com",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)

			var secrets config.SecretStore
			if tc.secrets != nil {
				secrets = tc.secrets
			}

			cfg, err := config.Load(config.NewViper(), "", secrets)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	setEnv(t, map[string]string{
		"EMAIL_USER": "me@example.com",
	})

	secrets := &secretsMock{}
	_, err := config.Load(config.NewViper(), "", secrets)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Contains(t, err.Error(), "EMAIL_PASSWORD, IMAP_HOST")
	assert.Equal(t, []string{"me@example.com"}, secrets.calls)
}

func TestLoadNegativeAuthTimeout(t *testing.T) {
	setEnv(t, map[string]string{
		"EMAIL_USER":        "me@example.com",
		"EMAIL_PASSWORD":    "secret",
		"IMAP_HOST":         "mail.example.com",
		"IMAP_AUTH_TIMEOUT": "-5",
	})

	_, err := config.Load(config.NewViper(), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
imap:
  host: file.example.com
  user: file@example.com
  password: file-secret
smtp:
  host: relay.example.com
  port: 587
  secure: false
`), 0600))

	cfg, err := config.Load(config.NewViper(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "file.example.com", cfg.IMAP.Host)
	assert.Equal(t, "relay.example.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.False(t, cfg.SMTP.Secure)
	assert.Equal(t, "file@example.com", cfg.SMTP.User)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAIL_MCP_TEST_VALUE=loaded\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("MAIL_MCP_TEST_VALUE") })

	require.NoError(t, config.LoadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("MAIL_MCP_TEST_VALUE"))

	require.NoError(t, config.LoadEnvFile(""))
	require.Error(t, config.LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
