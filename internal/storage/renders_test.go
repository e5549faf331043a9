package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptkit/internal/render"
	"promptkit/internal/walker"
)

func TestSaveAndGetRender(t *testing.T) {
	db := openTestDB(t)

	res := render.Result{
		Status:       render.StatusOK,
		PrefixTokens: 12,
		SuffixTokens: 3,
		Context:      []string{"a", ""},
		Metadata: render.Metadata{
			RenderID:    "r-1",
			ElisionTime: 2 * time.Millisecond,
			RenderTime:  5 * time.Millisecond,
			ComponentStats: []render.ComponentStat{
				{Path: "[0]f[1]CurrentFile", Kind: walker.KindPrefix, OriginalTokens: 12, FinalTokens: 12},
			},
		},
	}
	rec := NewRenderRecord(res, OriginCLI, "main.go")
	require.NoError(t, db.SaveRender(rec))
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := db.GetRender("r-1")
	require.NoError(t, err)
	assert.Equal(t, OriginCLI, got.Origin)
	assert.Equal(t, "main.go", got.DocumentPath)
	assert.Equal(t, render.StatusOK, got.Status)
	assert.Equal(t, 12, got.PrefixTokens)
	assert.Equal(t, 2, got.ContextGroups)
	assert.Equal(t, 5*time.Millisecond, got.RenderTime)
	require.Len(t, got.ComponentStats, 1)
	assert.Equal(t, walker.KindPrefix, got.ComponentStats[0].Kind)
}

func TestSaveRender_FailedRender(t *testing.T) {
	db := openTestDB(t)

	rec := NewRenderRecord(render.Result{Status: render.StatusError, Err: errors.New("boom")}, OriginServer, "")
	require.NoError(t, db.SaveRender(rec))
	require.NotEmpty(t, rec.ID)

	got, err := db.GetRender(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "boom", got.Error)
	assert.Empty(t, got.ComponentStats)
}

func TestGetRender_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRender("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListAndPruneRenders(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	for i, age := range []time.Duration{72 * time.Hour, 2 * time.Hour, time.Minute} {
		rec := &RenderRecord{
			ID:        string(rune('a' + i)),
			Origin:    OriginWatch,
			Status:    render.StatusOK,
			CreatedAt: now.Add(-age),
		}
		require.NoError(t, db.SaveRender(rec))
	}

	list, err := db.ListRenders(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID, "newest first")
	assert.Equal(t, "b", list[1].ID)

	n, err := db.PruneRenders(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err = db.ListRenders(0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
