package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/vthlab/internal/repository"
	"github.com/RMahshie/vthlab/pkg/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore_SaveAndLoad(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	failed := models.FailedRecord(models.NoteNoValidBlocks)
	failed.FilePath, failed.Device = "chip1/77K/pmos/2.txt", "pmos"

	records := []models.Record{
		{
			FilePath: "chip1/295K/nmos/1.txt", Temperature: "295K", Device: "nmos", DeviceIndex: 1,
			Chip: "chip1", Method: "hybrid", Used: "traditional", DrainBias: 0.1, VthVolts: 0.42,
			GmMax: 1.5e-5, Index: 12, NumPoints: 25,
		},
		failed,
	}

	id, err := st.SaveRun(ctx, "data", records)
	require.NoError(t, err)

	latest, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest)

	got, err := st.Records(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0], got[0])
	assert.True(t, math.IsNaN(got[1].VthVolts))
	assert.True(t, math.IsNaN(got[1].DrainBias))
	assert.Equal(t, -1, got[1].Index)
	assert.Equal(t, models.NoteNoValidBlocks, got[1].Notes)

	second, err := st.SaveRun(ctx, "other", records[:1])
	require.NoError(t, err)
	assert.Greater(t, second, id)
	latest, err = st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest)
}

func TestStore_Empty(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	_, err := st.LatestRun(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = st.Records(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
