package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"fun-friday-chat/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrVaultDisabled  = errors.New("vault integration is disabled")
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// VaultManager manages secrets with HashiCorp Vault. When no Vault address
// is configured the manager is disabled and every lookup falls back to the
// supplied default.
type VaultManager struct {
	client      *vault.Client
	secretsPath string
	enabled     bool
	cache       map[string]string
	cachedAt    map[string]time.Time
	cacheTTL    time.Duration
	mu          sync.RWMutex
	log         *logger.Logger
}

// NewVaultManager creates a new Vault manager instance configured from
// VAULT_ADDR, VAULT_TOKEN and VAULT_SECRETS_PATH
func NewVaultManager(log *logger.Logger) (*VaultManager, error) {
	addr := os.Getenv("VAULT_ADDR")

	m := &VaultManager{
		secretsPath: os.Getenv("VAULT_SECRETS_PATH"),
		enabled:     addr != "",
		cache:       make(map[string]string),
		cachedAt:    make(map[string]time.Time),
		cacheTTL:    5 * time.Minute,
		log:         log,
	}

	if !m.enabled {
		log.Info("vault integration disabled, secrets fall back to environment")
		return m, nil
	}

	if m.secretsPath == "" {
		m.secretsPath = "secret/data/funfriday"
	}

	cfg := vault.DefaultConfig()
	cfg.Address = addr
	cfg.Timeout = 10 * time.Second

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
	}

	m.client = client
	log.Info("vault secrets manager initialized", "path", m.secretsPath)
	return m, nil
}

// GetSecret retrieves a secret by key from Vault, with a short-lived cache
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	if !m.enabled {
		return "", ErrVaultDisabled
	}

	m.mu.RLock()
	if v, ok := m.cache[key]; ok && time.Since(m.cachedAt[key]) < m.cacheTTL {
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	secret, err := m.client.Logical().ReadWithContext(ctx, m.secretsPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	// KV v2 nests the payload under "data"
	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	value, ok := data[key].(string)
	if !ok {
		return "", ErrSecretNotFound
	}

	m.mu.Lock()
	m.cache[key] = value
	m.cachedAt[key] = time.Now()
	m.mu.Unlock()

	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrVaultDisabled) && !errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("secret lookup failed", "key", key, "error", err.Error())
		}
		return defaultValue
	}
	return value
}
