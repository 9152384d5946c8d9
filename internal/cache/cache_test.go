package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songrate/pkg/models"
)

func sampleResults(id string) *models.Results {
	return &models.Results{
		RoundID: id,
		Title:   "March",
		Songs: []models.SongResult{{
			TrackID:        "x",
			SubmittedBy:    "A",
			Average:        7.5,
			AverageDisplay: "7.5",
			Ratings:        []models.Rating{{TrackID: "x", Rater: "B", Value: 7.5}},
		}},
		Rankings: []models.SubmitterResult{{Rank: 1, Submitter: "A", Average: 7.5, AverageDisplay: "7.5"}},
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.GetResults(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetResults(ctx, sampleResults("r1")))
	got, ok, err := m.GetResults(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "March", got.Title)
}

// Runs against a live server when RATE_TEST_REDIS_ADDR is set.
func TestRedis(t *testing.T) {
	addr := os.Getenv("RATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RATE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping().Err())
	defer client.Close()

	ctx := context.Background()
	c := NewRedis(client, "test-"+uuid.NewString(), time.Minute)

	_, ok, err := c.GetResults(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleResults("r1")
	require.NoError(t, c.SetResults(ctx, want))
	got, ok, err := c.GetResults(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, client.Del(c.key("r1")).Err())
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "rate:results:abc", NewRedis(nil, "rate", time.Minute).key("abc"))
	assert.Equal(t, "results:abc", NewRedis(nil, "", time.Minute).key("abc"))
}
