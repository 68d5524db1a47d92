package keyring

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitcraft/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the name
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Secret names a value stored in the OS keyring.
type Secret struct {
	User string // keyring account name
	Env  string // environment variable that overrides the stored value
	Desc string
}

var (
	// ConnectionString is the remote database DSN.
	ConnectionString = Secret{User: constants.DefaultKeyringUser, Env: constants.DBConnectionEnv, Desc: "remote database connection string"}
	// AdvisorAPIKey is the API key for the advisory service.
	AdvisorAPIKey = Secret{User: constants.AdvisorKeyringUser, Env: constants.AdvisorAPIKeyEnv, Desc: "advisor API key"}
)

// Secrets lists every known secret, for the keyring commands.
var Secrets = map[string]Secret{
	"db":      ConnectionString,
	"advisor": AdvisorAPIKey,
}

// Get retrieves a secret from the OS keyring.
// Returns ErrNotFound if nothing is stored.
func Get(s Secret) (string, error) {
	v, err := keyring.Get(constants.AppName, s.User)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", ErrNotFound
		}
		// Wrap other keyring errors as unavailable
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

// Resolve returns the secret from its environment variable when set,
// otherwise from the keyring. The second result names the source.
func Resolve(s Secret) (value, source string, err error) {
	if s.Env != "" {
		if v := os.Getenv(s.Env); v != "" {
			return v, "env:" + s.Env, nil
		}
	}
	v, err := Get(s)
	if err != nil {
		return "", "", err
	}
	return v, "keyring", nil
}

// Set stores a secret in the OS keyring.
func Set(s Secret, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", s.Desc)
	}
	if err := keyring.Set(constants.AppName, s.User, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", s.Desc, err)
	}
	return nil
}

// Delete removes a secret from the OS keyring.
func Delete(s Secret) error {
	err := keyring.Delete(constants.AppName, s.User)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", s.Desc, err)
	}
	return nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	// ErrNotFound means the keyring answered but is empty
	return err == nil || err == keyring.ErrNotFound
}
