package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const envPrefix = "SIDELOAD_"

var (
	envFile = ".env"
)

// applyEnv loads the optional .env file and lets SIDELOAD_* variables
// override values from the config file. Variables already present in the
// process environment win over the .env file.
func applyEnv(c *Config) error {
	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load env file '%s': %w", envFile, err)
	}

	strs := map[string]*string{
		"UPLOAD_DIR":     &c.UploadDir,
		"QUARANTINE_DIR": &c.QuarantineDir,
		"BACKEND":        &c.Backend,
		"FOLDER_ID":      &c.FolderID,
		"BOT_TOKEN":      &c.Telegram.BotToken,
		"SENDGRID_KEY":   &c.Sendgrid.APIKey,
		"S3_ACCESS_KEY":  &c.S3.AccessKey,
		"S3_SECRET_KEY":  &c.S3.SecretKey,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sMAX_ATTEMPTS: %w", ErrInvalid, envPrefix, err)
		}
		c.MaxAttempts = n
	}
	if v, ok := os.LookupEnv(envPrefix + "CHAT_ID"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %sCHAT_ID: %w", ErrInvalid, envPrefix, err)
		}
		c.Telegram.ChatID = n
	}
	return nil
}
