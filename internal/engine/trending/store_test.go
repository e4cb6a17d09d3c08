package trending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRowMatchesColumns(t *testing.T) {
	fin := time.Date(2026, 10, 17, 9, 0, 0, 0, time.FixedZone("X", 3600))
	res := CountryResult{RunID: "r", Country: "US", FinishedAt: fin}
	rec := VideoRecord{VideoID: "v", Tags: []string{"a", "b"}, ViewCount: 5, CommentsDisabled: true}

	row := storeRow(res, rec)
	require.Len(t, row, len(storeColumns))

	byCol := make(map[string]any, len(row))
	for i, c := range storeColumns {
		byCol[c] = row[i]
	}
	assert.Equal(t, "r", byCol["run_id"])
	assert.Equal(t, "v", byCol["video_id"])
	assert.Equal(t, []string{"a", "b"}, byCol["tags"])
	assert.Equal(t, int64(5), byCol["view_count"])
	assert.Equal(t, true, byCol["comments_disabled"])
	assert.Equal(t, fin.UTC(), byCol["collected_at"])
}
