package exchanges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAddress(t *testing.T) {
	assert.NoError(t, CheckAddress("x", "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"))
	for _, bad := range []string{"", "1BvBM SEY", "abc\n", "\tabc"} {
		err := CheckAddress("x", bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, "%q", bad)
	}
}

func TestFilterTransactions(t *testing.T) {
	at := func(sec int64) *Transaction { return &Transaction{ID: FormatInt(sec), Timestamp: time.Unix(sec, 0)} }
	txs := func() []*Transaction { return []*Transaction{at(1), nil, at(2), at(3)} }

	got := FilterTransactions(txs(), time.Time{}, 0)
	require.Len(t, got, 3)

	got = FilterTransactions(txs(), time.Unix(2, 0), 0)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)

	got = FilterTransactions(txs(), time.Time{}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].ID)
}
