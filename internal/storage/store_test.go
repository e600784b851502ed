package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	store, err := New(t.TempDir(), maxSize, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestStore_SaveAndRead(t *testing.T) {
	store := newTestStore(t, 0)

	ref, err := store.Save("invoice march.pdf", []byte("%PDF-1.4 content"))
	require.NoError(t, err)

	// Reference is opaque but carries the year/month shard and the
	// sanitized original name
	assert.Regexp(t, `^\d{4}/\d{2}/[0-9a-f-]+_invoice_march\.pdf$`, ref)

	content, err := store.Read(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 content"), content)
}

func TestStore_SaveRejectsOversizedFile(t *testing.T) {
	store := newTestStore(t, 8)

	_, err := store.Save("big.pdf", []byte("way more than eight bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestStore_RefusesPathEscape(t *testing.T) {
	store := newTestStore(t, 0)

	_, err := store.Read("../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes storage directory")
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	store := newTestStore(t, 0)

	assert.NoError(t, store.Delete("2026/01/nonexistent_file.pdf"))
}

func TestStore_DistinctRefsForSameName(t *testing.T) {
	store := newTestStore(t, 0)

	ref1, err := store.Save("invoice.pdf", []byte("a"))
	require.NoError(t, err)
	ref2, err := store.Save("invoice.pdf", []byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2)
	assert.True(t, strings.HasSuffix(ref1, "_invoice.pdf"))
}
