// internal/vault/vault.go
//
// Vault client wrapper for piccolo.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK for one purpose: resolving
//     `vault:<path>#<key>` references found in configuration credentials.
//   - Piccolo runs one command and exits, so there is no token-renewal loop
//     and no cache; each reference costs one KV-v2 read at startup.
//
// Environment expectations
// ------------------------
//   - VAULT_ADDR  – scheme and host of the Vault server.
//   - VAULT_TOKEN – token (falls back to ~/.vault-token).
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// RefPrefix marks a config value as a Vault reference.
const RefPrefix = "vault:"

// IsRef reports whether value is a `vault:<path>#<key>` reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, RefPrefix)
}

// Client wraps one Vault API client.
type Client struct {
	api *vault.Client
}

// New constructs a Vault client from the environment.
func New(ctx context.Context) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	return &Client{api: apiCli}, nil
}

// Resolve fetches the value a `vault:<path>#<key>` reference points at.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	body := strings.TrimPrefix(ref, RefPrefix)
	secretPath, key, ok := strings.Cut(body, "#")
	if !ok || secretPath == "" || key == "" {
		return "", fmt.Errorf("malformed vault reference %q (want vault:<path>#<key>)", ref)
	}
	return c.getKV(ctx, secretPath, key)
}

// getKV fetches a single key from a KV-v2 secret.
func (c *Client) getKV(ctx context.Context, secretPath, key string) (string, error) {
	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}

	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}
	return sval, nil
}

func splitMount(p string) (mount, rel string) {
	parts := strings.SplitN(p, "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}
