package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:8081", "-grpc", "127.0.0.1:9090", "-d", "db", "-s", "secret",
				"-t", "1", "-r", "3", "-m", "smtp", "-smtp-host", "mail.local", "-smtp-port", "2525",
				"-smtp-user", "mailer", "-smtp-password", "pw", "-mail-from", "accounts@example.com",
				"-reset-url", "https://app/reset",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
				"-log-format", "text",
			},
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:8081",
				EndpointAddrGRPC:             "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  1 * time.Minute,
				RefreshTokenValidityDuration: 3 * time.Minute,
				MailTransport:                "smtp",
				SMTPHost:                     "mail.local",
				SMTPPort:                     2525,
				SMTPUser:                     "mailer",
				SMTPPassword:                 "pw",
				MailFrom:                     "accounts@example.com",
				PasswordResetURL:             "https://app/reset",
				S3RootUser:                   "user",
				S3RootPassword:               "password",
				S3Bucket:                     "bucket",
				S3Region:                     "us-west-1",
				S3BaseEndpoint:               "http://endpoint",
				LogFormat:                    "text",
			},
		},
		{
			name:        "bad int",
			args:        []string{"cmd", "-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

func TestParseFlags_IgnoresForeignFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd", "-config", "cfg.json", "-d", "memory"}

	var c Config
	c.LoadDefaults()
	require.NotPanics(t, func() { parseFlags(&c) })

	assert.Equal(t, MemoryDSN, c.DatabaseDSN)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
}
