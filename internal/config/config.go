package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/torfstack/sideload/internal/logging"
	"github.com/torfstack/sideload/internal/util"
)

const (
	BackendDrive = "drive"
	BackendS3    = "s3"
)

var (
	ErrInvalid = errors.New("invalid config")

	configFilePath = filepath.Join(util.ConfigDir, "config.toml")
	defaultBaseDir = filepath.Join(util.HomeDir(), "sideload")

	defaultIgnore = []string{
		"*.part",
		"*.!qB",
		"*.crdownload",
		"*.tmp",
		".DS_Store",
	}
)

type Config struct {
	UploadDir     string `toml:"upload_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	StateDir      string `toml:"state_dir"`

	Backend     string `toml:"backend"`
	FolderID    string `toml:"folder_id"`
	MaxAttempts int    `toml:"max_attempts"`

	SleepAfterFile    time.Duration `toml:"sleep_after_file"`
	SleepAfterRound   time.Duration `toml:"sleep_after_round"`
	StabilityInterval time.Duration `toml:"stability_interval"`
	StabilityProbes   int           `toml:"stability_probes"`

	Watch  bool     `toml:"watch"`
	Ignore []string `toml:"ignore"`

	Drive    Drive    `toml:"drive"`
	S3       S3       `toml:"s3"`
	Telegram Telegram `toml:"telegram"`
	Sendgrid Sendgrid `toml:"sendgrid"`
}

type Drive struct {
	CredentialsFile string `toml:"credentials_file"`
}

type S3 struct {
	Bucket     string `toml:"bucket"`
	Region     string `toml:"region"`
	Endpoint   string `toml:"endpoint"`
	AccessKey  string `toml:"access_key"`
	SecretKey  string `toml:"secret_key"`
	PoolPrefix string `toml:"pool_prefix"`
}

type Telegram struct {
	BotToken string `toml:"bot_token"`
	ChatID   int64  `toml:"chat_id"`
	APIURL   string `toml:"api_url"`
}

type Sendgrid struct {
	APIKey string `toml:"api_key"`
	From   string `toml:"from"`
	To     string `toml:"to"`
}

// SetFilePath points Get at a config file other than the default one.
func SetFilePath(path string) {
	configFilePath = util.ExpandHome(path)
}

func FilePath() string {
	return configFilePath
}

// Get reads the config file, creating it with defaults if it does not exist,
// then applies .env and environment overrides and validates the result.
func Get(interactive bool) (Config, error) {
	c, err := get(interactive)
	if err != nil {
		return c, err
	}
	if err = applyEnv(&c); err != nil {
		return c, err
	}
	c.expand()
	if err = c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func get(interactive bool) (Config, error) {
	c := initialConfig()
	f, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return initConfig(interactive)
	case err != nil:
		return c, fmt.Errorf("could not open config file for reading '%s': %w", configFilePath, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	_, err = toml.NewDecoder(f).Decode(&c)
	if err != nil {
		return c, fmt.Errorf("could not decode config file '%s': %w", configFilePath, err)
	}
	return c, nil
}

func initConfig(interactive bool) (Config, error) {
	c := initialConfig()
	if interactive {
		err := guidedInitialization(&c)
		if err != nil {
			return c, fmt.Errorf("could not initialize config interactively: %w", err)
		}
	}
	return c, c.persist()
}

func (c *Config) persist() error {
	f, err := util.OpenWithParents(configFilePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("could not open config file for writing '%s': %w", configFilePath, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	logging.Debugf("Persisting config file to '%s'", configFilePath)
	err = toml.NewEncoder(f).Encode(c)
	if err != nil {
		return fmt.Errorf("could not persist config to file '%s': %w", configFilePath, err)
	}

	return nil
}

func initialConfig() Config {
	return Config{
		UploadDir:         filepath.Join(defaultBaseDir, "upload"),
		QuarantineDir:     filepath.Join(defaultBaseDir, "transfer"),
		StateDir:          util.ConfigDir,
		Backend:           BackendDrive,
		FolderID:          "root",
		MaxAttempts:       999999,
		SleepAfterFile:    10 * time.Second,
		SleepAfterRound:   60 * time.Second,
		StabilityInterval: 30 * time.Second,
		StabilityProbes:   1000,
		Ignore:            slices.Clone(defaultIgnore),
		Drive: Drive{
			CredentialsFile: filepath.Join(util.ConfigDir, "credentials.json"),
		},
		S3: S3{
			PoolPrefix: "sha1",
		},
		Telegram: Telegram{
			APIURL: "https://api.telegram.org",
		},
	}
}

func (c *Config) expand() {
	c.UploadDir = util.ExpandHome(c.UploadDir)
	c.QuarantineDir = util.ExpandHome(c.QuarantineDir)
	c.StateDir = util.ExpandHome(c.StateDir)
	c.Drive.CredentialsFile = util.ExpandHome(c.Drive.CredentialsFile)
}

func (c Config) Validate() error {
	switch {
	case c.UploadDir == "":
		return fmt.Errorf("%w: upload_dir is required", ErrInvalid)
	case c.QuarantineDir == "":
		return fmt.Errorf("%w: quarantine_dir is required", ErrInvalid)
	case isWithin(c.UploadDir, c.QuarantineDir):
		return fmt.Errorf("%w: quarantine_dir must not be upload_dir or inside it", ErrInvalid)
	case c.StateDir == "":
		return fmt.Errorf("%w: state_dir is required", ErrInvalid)
	case c.MaxAttempts < 0:
		return fmt.Errorf("%w: max_attempts must not be negative", ErrInvalid)
	case c.StabilityProbes < 1:
		return fmt.Errorf("%w: stability_probes must be at least 1", ErrInvalid)
	case c.SleepAfterFile < 0 || c.SleepAfterRound < 0 || c.StabilityInterval < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}

	switch c.Backend {
	case BackendDrive:
		if c.FolderID == "" {
			return fmt.Errorf("%w: folder_id is required for the drive backend", ErrInvalid)
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: s3.bucket is required for the s3 backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend '%s'", ErrInvalid, c.Backend)
	}

	if c.Sendgrid.APIKey != "" && (c.Sendgrid.From == "" || c.Sendgrid.To == "") {
		return fmt.Errorf("%w: sendgrid.from and sendgrid.to are required with an api key", ErrInvalid)
	}
	return nil
}

// isWithin reports whether path is dir itself or lies below it.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("upload_dir", c.UploadDir),
		slog.String("quarantine_dir", c.QuarantineDir),
		slog.String("backend", c.Backend),
		slog.String("folder_id", c.FolderID),
		slog.Int("max_attempts", c.MaxAttempts),
		slog.Duration("sleep_after_file", c.SleepAfterFile),
		slog.Duration("sleep_after_round", c.SleepAfterRound),
		slog.Bool("watch", c.Watch),
		slog.String("telegram_bot_token", maskSecret(c.Telegram.BotToken)),
		slog.String("sendgrid_api_key", maskSecret(c.Sendgrid.APIKey)),
		slog.String("s3_secret_key", maskSecret(c.S3.SecretKey)),
	)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "*****"
	}
	return s[:4] + "*****"
}
