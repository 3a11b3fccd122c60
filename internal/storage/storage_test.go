package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "does-not-exist"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpenMissingDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestRegisterAndOpen(t *testing.T) {
	var got Config
	Register("registry-test", func(ctx context.Context, cfg Config) (Store, error) {
		got = cfg
		return nil, nil
	})

	_, err := Open(context.Background(), Config{Driver: "registry-test", DSN: "mem"})
	require.NoError(t, err)
	assert.Equal(t, "mem", got.DSN)
	assert.Contains(t, Drivers(), "registry-test")

	assert.Panics(t, func() {
		Register("registry-test", func(ctx context.Context, cfg Config) (Store, error) { return nil, nil })
	})
	assert.Panics(t, func() { Register("", nil) })
}
