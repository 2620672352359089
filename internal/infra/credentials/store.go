package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"toonify/internal/infra"
	"toonify/internal/sqlinline"
)

// Provider names as stored in integration_tokens.provider.
const (
	ProviderReplicate = "replicate"
	ProviderDashScope = "dashscope"
)

// Store reads and writes provider API keys kept in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers an explicitly configured key and falls back to the stored one.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// SetToken stores key for provider, replacing any previous key. props are
// merged into the properties already recorded.
func (s *Store) SetToken(ctx context.Context, provider, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", provider)
	}
	if err := checkProvider(provider); err != nil {
		return err
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, key, raw)
	return err
}

// DeleteToken removes the stored key for provider and reports whether one existed.
func (s *Store) DeleteToken(ctx context.Context, provider string) (bool, error) {
	if err := checkProvider(provider); err != nil {
		return false, err
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func checkProvider(provider string) error {
	switch provider {
	case ProviderReplicate, ProviderDashScope:
		return nil
	}
	return fmt.Errorf("unsupported provider %q", provider)
}
