package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *LocalCatalog {
	t.Helper()
	c, err := OpenLocalCatalog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalogPutListDelete(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.Put(ActorRecord{ID: "a1", Type: "std.Source"}))
	require.NoError(t, c.Put(ActorRecord{ID: "a2", Type: "std.Sink", Denied: true}))

	recs, err := c.List()
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byID := map[string]ActorRecord{}
	for _, r := range recs {
		byID[r.ID] = r
	}
	assert.Equal(t, "std.Source", byID["a1"].Type)
	assert.True(t, byID["a2"].Denied)
	assert.False(t, byID["a1"].SavedAt.IsZero())

	require.NoError(t, c.Delete("a1"))
	recs, err = c.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a2", recs[0].ID)
}

func TestCatalogPutOverwrites(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.Put(ActorRecord{ID: "a1", Type: "std.Source"}))
	require.NoError(t, c.Put(ActorRecord{ID: "a1", Type: "std.Filter"}))

	recs, err := c.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "std.Filter", recs[0].Type)
}

func TestCatalogDeleteUnknownIsNoop(t *testing.T) {
	c := openTestCatalog(t)
	assert.NoError(t, c.Delete("ghost"))
}
