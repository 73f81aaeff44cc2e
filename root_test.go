package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantalupo555/aziendaweb-bill-downloader/internal/config"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

var fullEnv = env(map[string]string{
	config.EnvEndpoint: "ws://selenium:9222",
	config.EnvUsername: "mario",
	config.EnvPassword: "hunter2",
})

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	assert.Equal(t, config.AppName, cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.True(t, cmd.SilenceUsage)

	for _, name := range []string{
		"endpoint", "base-url", "download", "locators", "since",
		"window-width", "window-height", "log-format", "verbose",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "v", cmd.Flags().Lookup("verbose").Shorthand)
}

func TestHelpDescribesLookback(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	for name, text := range map[string]string{
		"long help":  cmd.Long,
		"since flag": cmd.Flags().Lookup("since").Usage,
	} {
		assert.Contains(t, text, "the first day of the month 30 days ago", name)
		assert.NotContains(t, text, "last month", name)
	}
}

func TestVersionFlag(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd(env(nil))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "version "+appVersion)
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults and environment", func(t *testing.T) {
		t.Parallel()

		cmd := newRootCmd(fullEnv)
		require.NoError(t, cmd.ParseFlags(nil))

		cfg, since, err := buildConfig(cmd, fullEnv)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "ws://selenium:9222", cfg.Endpoint)
		assert.Equal(t, "mario", cfg.Username)
		assert.Equal(t, config.DefaultBaseURL, cfg.BaseURL)
		assert.Equal(t, config.DefaultDownloadDir, cfg.DownloadDir)
		assert.Equal(t, 1920, cfg.WindowWidth)
		assert.Equal(t, 1080, cfg.WindowHeight)
		assert.True(t, since.IsZero())
	})

	t.Run("flags win over the environment", func(t *testing.T) {
		t.Parallel()

		cmd := newRootCmd(fullEnv)
		require.NoError(t, cmd.ParseFlags([]string{
			"--endpoint", "http://127.0.0.1:9222",
			"--since", "2023-12-01",
			"--log-format", "json",
			"-v",
		}))

		cfg, since, err := buildConfig(cmd, fullEnv)
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:9222", cfg.Endpoint)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), since)
	})

	t.Run("bad since", func(t *testing.T) {
		t.Parallel()

		cmd := newRootCmd(fullEnv)
		require.NoError(t, cmd.ParseFlags([]string{"--since", "yesterday"}))

		_, _, err := buildConfig(cmd, fullEnv)
		assert.ErrorContains(t, err, "--since")
	})
}

func TestRunFailsBeforeOpeningTheBrowser(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("elements: [not, a, map"), 0o600))

	tests := []struct {
		name    string
		getenv  func(string) string
		args    []string
		wantErr error
		wantMsg string
	}{
		{
			name:    "no endpoint",
			getenv:  env(map[string]string{config.EnvUsername: "mario", config.EnvPassword: "x"}),
			wantErr: config.ErrMissingEndpoint,
		},
		{
			name:    "no password",
			getenv:  env(map[string]string{config.EnvEndpoint: "ws://selenium:9222", config.EnvUsername: "mario"}),
			wantErr: config.ErrMissingPassword,
		},
		{
			name:    "bad log format",
			getenv:  fullEnv,
			args:    []string{"--log-format", "xml"},
			wantErr: config.ErrInvalidLogFormat,
		},
		{
			name:    "missing locator file",
			getenv:  fullEnv,
			args:    []string{"--locators", missing},
			wantMsg: "locators",
		},
		{
			name:    "broken locator file",
			getenv:  fullEnv,
			args:    []string{"--locators", broken},
			wantMsg: "parse locator file",
		},
		{
			name:    "positional argument",
			getenv:  fullEnv,
			args:    []string{"extra"},
			wantMsg: "unknown command",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := newRootCmd(tt.getenv)
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.ErrorContains(t, err, tt.wantMsg)
			}
			assert.NotContains(t, out.String(), "FINAL REPORT")
		})
	}
}
