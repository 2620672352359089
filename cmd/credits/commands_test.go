package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toonify/internal/adapter/sqlite"
)

func run(t *testing.T, store *sqlite.Store, args ...string) (string, error) {
	t.Helper()
	open := func(context.Context) (ledger, io.Closer, error) {
		return store, io.NopCloser(nil), nil
	}
	cmd := Root(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGrantBalanceHistory(t *testing.T) {
	store, err := sqlite.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	out, err := run(t, store, "grant", "--user", "user-1", "--amount", "10", "--reason", "promo")
	require.NoError(t, err)
	assert.Contains(t, out, "granted 10 credits to user-1, balance 10")

	_, _, err = store.Deduct(context.Background(), "user-1", 1, "image transform", "pred-1")
	require.NoError(t, err)

	out, err = run(t, store, "balance", "--user", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1: 9 credits\n", out)

	out, err = run(t, store, "history", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "promo")
	assert.Contains(t, out, "pred-1")
}

func TestCommandValidation(t *testing.T) {
	store, err := sqlite.Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = run(t, store, "grant", "--amount", "5")
	assert.ErrorContains(t, err, "--user is required")

	_, err = run(t, store, "grant", "--user", "u", "--amount", "0")
	assert.ErrorContains(t, err, "--amount must be positive")
}
