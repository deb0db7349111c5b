package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

var (
	inputFile = os.Stdin
)

func guidedInitialization(config *Config) error {
	scanner := bufio.NewScanner(inputFile)

	input, err := ask(scanner, fmt.Sprintf("Enter directory to watch for uploads [default: %s]", config.UploadDir))
	if err != nil {
		return err
	}
	if input != "" {
		config.UploadDir = input
	}

	input, err = ask(scanner, fmt.Sprintf("Enter backend, drive or s3 [default: %s]", config.Backend))
	if err != nil {
		return err
	}
	if input != "" {
		config.Backend = input
	}

	input, err = ask(scanner, fmt.Sprintf("Enter destination folder id [default: %s]", config.FolderID))
	if err != nil {
		return err
	}
	if input != "" {
		config.FolderID = input
	}

	input, err = ask(scanner, fmt.Sprintf("Enter pause between directory sweeps (e.g. 30s, 1m) [default: %s]", config.SleepAfterRound))
	if err != nil {
		return err
	}
	if input != "" {
		duration, err := time.ParseDuration(input)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		config.SleepAfterRound = duration
	}

	return nil
}

func ask(scanner *bufio.Scanner, prompt string) (string, error) {
	fmt.Printf("%s: ", prompt)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("could not read user input: %w", err)
		}
		return "", nil // EOF or closed input
	}
	return strings.TrimSpace(scanner.Text()), nil
}
