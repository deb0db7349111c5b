package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		want func(*testing.T)
	}{
		{
			name: "config file initially does not exist",
			want: func(t *testing.T) {
				_, err := os.Open(configFilePath)
				require.ErrorIs(t, err, os.ErrNotExist)
			},
		},
		{
			name: "non-interactive; creates config file",
			want: func(t *testing.T) {
				_, err := Get(false)
				require.NoError(t, err)

				_, err = os.Stat(configFilePath)
				require.NoError(t, err)
			},
		},
		{
			name: "non-interactive; config does not exist",
			want: func(t *testing.T) {
				cfg, err := Get(false)
				require.NoError(t, err)
				require.Equal(t, filepath.Join(defaultBaseDir, "upload"), cfg.UploadDir)
				require.Equal(t, 999999, cfg.MaxAttempts)
				require.Equal(t, 10*time.Second, cfg.SleepAfterFile)
				require.Equal(t, 60*time.Second, cfg.SleepAfterRound)
				require.Equal(t, BackendDrive, cfg.Backend)
			},
		},
		{
			name: "non-interactive; config exists",
			want: func(t *testing.T) {
				c := initialConfig()
				c.UploadDir = t.TempDir()
				c.MaxAttempts = 3
				c.SleepAfterRound = 5 * time.Minute
				require.NoError(t, c.persist())

				cfg, err := Get(false)
				require.NoError(t, err)
				require.Equal(t, c.UploadDir, cfg.UploadDir)
				require.Equal(t, 3, cfg.MaxAttempts)
				require.Equal(t, 5*time.Minute, cfg.SleepAfterRound)
			},
		},
		{
			name: "partial file keeps defaults",
			want: func(t *testing.T) {
				writeConfig(t, "upload_dir = \"/srv/drop\"\nmax_attempts = 7\n")

				cfg, err := Get(false)
				require.NoError(t, err)
				require.Equal(t, "/srv/drop", cfg.UploadDir)
				require.Equal(t, 7, cfg.MaxAttempts)
				require.Equal(t, 30*time.Second, cfg.StabilityInterval)
				require.Equal(t, defaultIgnore, cfg.Ignore)
			},
		},
		{
			name: "durations as strings",
			want: func(t *testing.T) {
				writeConfig(t, "sleep_after_file = \"2s\"\nstability_interval = \"1m\"\n")

				cfg, err := Get(false)
				require.NoError(t, err)
				require.Equal(t, 2*time.Second, cfg.SleepAfterFile)
				require.Equal(t, time.Minute, cfg.StabilityInterval)
			},
		},
		{
			name: "malformed file is an error",
			want: func(t *testing.T) {
				writeConfig(t, "max_attempts = \"lots\"\n")

				_, err := Get(false)
				require.Error(t, err)
			},
		},
		{
			name: "invalid backend is rejected",
			want: func(t *testing.T) {
				writeConfig(t, "backend = \"ftp\"\n")

				_, err := Get(false)
				require.ErrorIs(t, err, ErrInvalid)
			},
		},
		{
			name: "s3 backend needs a bucket",
			want: func(t *testing.T) {
				writeConfig(t, "backend = \"s3\"\n")

				_, err := Get(false)
				require.ErrorIs(t, err, ErrInvalid)
			},
		},
		{
			name: "interactive; creates config file",
			want: func(t *testing.T) {
				inputFile = fileWithTextContent(t, "some/path")
				_, err := Get(true)
				require.NoError(t, err)

				_, err = os.Stat(configFilePath)
				require.NoError(t, err)
			},
		},
		{
			name: "interactive; config does not exist",
			want: func(t *testing.T) {
				inputFile = fileWithTextContent(t, "some/path\n\nfolder-42\n2m")
				cfg, err := Get(true)
				require.NoError(t, err)
				require.Equal(t, "some/path", cfg.UploadDir)
				require.Equal(t, BackendDrive, cfg.Backend)
				require.Equal(t, "folder-42", cfg.FolderID)
				require.Equal(t, 2*time.Minute, cfg.SleepAfterRound)
			},
		},
		{
			name: "interactive; config does exist",
			want: func(t *testing.T) {
				c := initialConfig()
				c.UploadDir = t.TempDir()
				require.NoError(t, c.persist())

				cfg, err := Get(true)
				require.NoError(t, err)
				require.Equal(t, c.UploadDir, cfg.UploadDir)
			},
		},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				tempDirSetup(t)
				tt.want(t)
			},
		)
	}
}

func TestEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func(*testing.T, Config)
		wantErr bool
	}{
		{
			name: "telegram and attempts",
			env: map[string]string{
				"SIDELOAD_BOT_TOKEN":    "123:abc",
				"SIDELOAD_CHAT_ID":      "4242",
				"SIDELOAD_MAX_ATTEMPTS": "5",
			},
			want: func(t *testing.T, c Config) {
				require.Equal(t, "123:abc", c.Telegram.BotToken)
				require.Equal(t, int64(4242), c.Telegram.ChatID)
				require.Equal(t, 5, c.MaxAttempts)
			},
		},
		{
			name: "folder and backend",
			env: map[string]string{
				"SIDELOAD_FOLDER_ID": "abc",
				"SIDELOAD_BACKEND":   "drive",
			},
			want: func(t *testing.T, c Config) {
				require.Equal(t, "abc", c.FolderID)
			},
		},
		{
			name:    "malformed attempts",
			env:     map[string]string{"SIDELOAD_MAX_ATTEMPTS": "many"},
			wantErr: true,
		},
		{
			name:    "malformed chat id",
			env:     map[string]string{"SIDELOAD_CHAT_ID": "@me"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDirSetup(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Get(false)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			tt.want(t, cfg)
		})
	}
}

func TestEnvFile(t *testing.T) {
	tempDirSetup(t)
	require.NoError(t, os.WriteFile(envFile, []byte("SIDELOAD_FOLDER_ID=from-dotenv\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("SIDELOAD_FOLDER_ID") })

	cfg, err := Get(false)
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.FolderID)
}

func TestLogValueMasksSecrets(t *testing.T) {
	c := initialConfig()
	c.Telegram.BotToken = "123456:hunter2"
	c.S3.SecretKey = "wJalrXUtnFEMI"
	c.Sendgrid.APIKey = "SG.topsecretkey"
	v := c.LogValue().String()
	require.NotContains(t, v, "hunter2")
	require.NotContains(t, v, "wJalrXUtnFEMI")
	require.NotContains(t, v, "topsecretkey")
	require.Contains(t, v, "1234*****")
	require.Contains(t, v, "wJal*****")
	require.Contains(t, v, "SG.t*****")
}

func TestValidateQuarantineLocation(t *testing.T) {
	base := t.TempDir()
	upload := filepath.Join(base, "upload")
	tests := []struct {
		name       string
		quarantine string
		wantErr    bool
	}{
		{name: "sibling directory", quarantine: filepath.Join(base, "transfer")},
		{name: "sibling sharing a prefix", quarantine: filepath.Join(base, "upload-transfer")},
		{name: "same directory", quarantine: upload, wantErr: true},
		{name: "same directory with trailing slash", quarantine: upload + "/", wantErr: true},
		{name: "nested inside upload directory", quarantine: filepath.Join(upload, "transfer"), wantErr: true},
		{name: "deeply nested", quarantine: filepath.Join(upload, "a", "b"), wantErr: true},
		{name: "parent of upload directory", quarantine: base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := initialConfig()
			c.UploadDir = upload
			c.QuarantineDir = tt.quarantine
			err := c.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func tempDirSetup(t *testing.T) {
	tempDir := t.TempDir()
	configFilePath = filepath.Join(tempDir, "config.toml")
	envFile = filepath.Join(tempDir, ".env")
}

func writeConfig(t *testing.T, content string) {
	require.NoError(t, os.WriteFile(configFilePath, []byte(content), 0600))
}

func fileWithTextContent(t *testing.T, text string) *os.File {
	tempDir := t.TempDir()
	f, err := os.Create(filepath.Join(tempDir, "file.txt"))
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)

	ff, _ := os.Open(f.Name())
	return ff
}
