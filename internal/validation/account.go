package validation

import (
	"fmt"
	"regexp"
)

// AccountPattern определяет допустимый формат имени аккаунта
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 3-32 символа
var AccountPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

const (
	// MinAccountLen минимальная длина имени аккаунта
	MinAccountLen = 3
	// MaxAccountLen максимальная длина имени аккаунта
	MaxAccountLen = 32
	// MinPassphraseLen минимальная длина парольной фразы
	MinPassphraseLen = 12
)

// ValidateAccount проверяет имя аккаунта.
// Имя входит в деривацию ключей, поэтому должно совпадать на всех узлах.
func ValidateAccount(account string) error {
	if account == "" {
		return fmt.Errorf("account cannot be empty")
	}

	if len(account) < MinAccountLen {
		return fmt.Errorf("account must be at least %d characters long", MinAccountLen)
	}

	if len(account) > MaxAccountLen {
		return fmt.Errorf("account must not exceed %d characters", MaxAccountLen)
	}

	if !AccountPattern.MatchString(account) {
		return fmt.Errorf("account can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassphrase проверяет минимальные требования к парольной фразе аккаунта
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}

	if len(passphrase) < MinPassphraseLen {
		return fmt.Errorf("passphrase must be at least %d characters long", MinPassphraseLen)
	}

	return nil
}
