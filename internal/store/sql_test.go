package store

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var sqliteSeq atomic.Int64

func TestSQLStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		dsn := fmt.Sprintf("file:store%d?mode=memory&cache=shared", sqliteSeq.Add(1))
		s, err := OpenSQL("sqlite", dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenSQLUnknownDriver(t *testing.T) {
	_, err := OpenSQL("mysql", "")
	require.Error(t, err)
}
