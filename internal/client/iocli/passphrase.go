package iocli

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// PassphraseEnv переменная окружения с парольной фразой аккаунта
const PassphraseEnv = "PEERSYNC_PASSPHRASE"

// ErrEmptyPassphrase парольная фраза не получена ни из одного источника
var ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

// ReadPassphrase получает парольную фразу в порядке приоритета:
// 1. переменная окружения PEERSYNC_PASSPHRASE
// 2. файл file (если задан), пробелы по краям отбрасываются
// 3. интерактивный ввод без эха
func ReadPassphrase(io IO, file string) (string, error) {
	if env := os.Getenv(PassphraseEnv); env != "" {
		return env, nil
	}

	if file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase file: %w", err)
		}
		passphrase := strings.TrimSpace(string(content))
		if passphrase == "" {
			return "", fmt.Errorf("passphrase file %s is empty", file)
		}
		return passphrase, nil
	}

	passphrase, err := io.ReadPassword("Passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase from stdin: %w", err)
	}
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}
	return passphrase, nil
}

// ReadNewPassphrase как ReadPassphrase, но при интерактивном вводе
// просит повторить фразу
func ReadNewPassphrase(io IO, file string) (string, error) {
	if os.Getenv(PassphraseEnv) != "" || file != "" {
		return ReadPassphrase(io, file)
	}

	first, err := ReadPassphrase(io, "")
	if err != nil {
		return "", err
	}
	second, err := io.ReadPassword("Repeat passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase from stdin: %w", err)
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}
