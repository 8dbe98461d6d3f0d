package storage_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/internal/infra/storage"
	"github.com/kislikjeka/moneyledger/pkg/config"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

func TestOpen_MemoryRegistersDefaultCurrency(t *testing.T) {
	ctx := context.Background()
	log := logger.New("test", io.Discard)

	tests := []struct {
		name     string
		currency string
		decimals int
	}{
		{name: "seeded currency kept", currency: "VES", decimals: 2},
		{name: "iso currency added", currency: "JPY", decimals: 0},
		{name: "non iso code assumes two digits", currency: "QQQ", decimals: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := storage.Open(ctx, &config.Config{Storage: config.StorageMemory, DefaultCurrency: tt.currency}, log)
			require.NoError(t, err)
			defer store.Close()

			assert.Equal(t, config.StorageMemory, store.Backend)
			assert.Nil(t, store.Ping)

			c, err := store.Ledger.GetCurrency(ctx, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.decimals, c.Decimals)

			for _, code := range []string{"USD", "EUR", "VES", "COP"} {
				_, err := store.Ledger.GetCurrency(ctx, code)
				assert.NoError(t, err, code)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := storage.Open(context.Background(), &config.Config{Storage: "sqlite"}, logger.New("test", io.Discard))
	assert.ErrorContains(t, err, "unknown storage backend")
}
