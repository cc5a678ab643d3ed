package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tap-in-osm/overpass-etl/internal/domain"
)

func TestSerializeSummary(t *testing.T) {
	generatedAt := time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	summary := domain.RunSummary{
		Artifact:      "data.geojson",
		FeatureCount:  1234,
		PreviousCount: 1200,
		SkippedCount:  3,
		DataTimestamp: "2026-08-24T21:00:00Z",
		GeneratedAt:   generatedAt,
	}

	msg, err := serializeSummary(summary)
	require.NoError(t, err)

	assert.Equal(t, []byte("data.geojson"), msg.Key)
	assert.Contains(t, string(msg.Value), `"feature_count":1234`)
	assert.Contains(t, string(msg.Value), `"previous_count":1200`)
	assert.Contains(t, string(msg.Value), `"data_timestamp":"2026-08-24T21:00:00Z"`)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "feature_count", msg.Headers[0].Key)
	assert.Equal(t, []byte("1234"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(generatedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeSummary_OmitsEmptyOptionalFields(t *testing.T) {
	msg, err := serializeSummary(domain.RunSummary{
		Artifact:     "data.geojson",
		FeatureCount: 1,
	})
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), "data_timestamp")
	assert.NotContains(t, string(msg.Value), "skipped_count")
}
