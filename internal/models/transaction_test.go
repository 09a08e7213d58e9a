package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestTransaction_CreditsToAdd(t *testing.T) {
	t.Run("defaults to the charged amount", func(t *testing.T) {
		tx := Transaction{Amount: 1000, Metadata: Metadata{}}
		assert.Equal(t, int64(1000), tx.CreditsToAdd())
	})

	t.Run("metadata override wins", func(t *testing.T) {
		tx := Transaction{Amount: 1000, Metadata: Metadata{MetadataCreditsKey: "5000"}}
		assert.Equal(t, int64(5000), tx.CreditsToAdd())
	})

	t.Run("ignores malformed or non-positive overrides", func(t *testing.T) {
		tx := Transaction{Amount: 1000, Metadata: Metadata{MetadataCreditsKey: "lots"}}
		assert.Equal(t, int64(1000), tx.CreditsToAdd())

		tx.Metadata[MetadataCreditsKey] = "-50"
		assert.Equal(t, int64(1000), tx.CreditsToAdd())
	})

	t.Run("nil metadata", func(t *testing.T) {
		tx := Transaction{Amount: 1000}
		assert.Equal(t, int64(1000), tx.CreditsToAdd())
	})
}

func TestMetadata_ScanValue(t *testing.T) {
	m := Metadata{"channel": "card"}
	v, err := m.Value()
	assert.NoError(t, err)

	var out Metadata
	assert.NoError(t, out.Scan(v))
	assert.Equal(t, "card", out["channel"])

	var empty Metadata
	assert.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
}

func TestNormalizeObservedStatus(t *testing.T) {
	assert.Equal(t, ObservedSuccess, NormalizeObservedStatus("success"))
	assert.Equal(t, ObservedFailed, NormalizeObservedStatus("failed"))
	assert.Equal(t, ObservedCancelled, NormalizeObservedStatus("cancelled"))
	assert.Equal(t, ObservedPending, NormalizeObservedStatus("pending"))
	assert.Equal(t, ObservedPending, NormalizeObservedStatus("reversal.pending"))
	assert.Equal(t, ObservedPending, NormalizeObservedStatus(""))
}
