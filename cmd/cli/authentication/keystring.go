package authentication

// keystring.go keeps the CLI login in the OS keyring, so calls do not need the password every time.
import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	serviceName    = "stockhub-cli"
	credentialsKey = "credentials"
)

// ErrNoCredentials is returned when nothing was saved yet.
var ErrNoCredentials = errors.New("no saved credentials, run login first")

type StoredCredentials struct {
	Addr     string `json:"addr"`
	Login    string `json:"login"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

func StoreCredentials(creds *StoredCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if err := keyring.Set(serviceName, credentialsKey, string(data)); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func GetCredentials() (*StoredCredentials, error) {
	value, err := keyring.Get(serviceName, credentialsKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds StoredCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, fmt.Errorf("corrupted credentials: %w", err)
	}
	return &creds, nil
}

func ClearCredentials() error {
	err := keyring.Delete(serviceName, credentialsKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
