package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songrate/internal/rounds"
	"songrate/pkg/database"
)

func newRepo(t *testing.T) *rounds.Repo {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "rate.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return rounds.NewRepo(db)
}

const sample = `
rounds:
  - title: February
    count: 1
    date: 2026-02-01T18:00:00Z
    end_date: 2026-02-04T18:00:00Z
    playlist:
      id: pl1
      url: https://open.spotify.com/playlist/pl1
    songs:
      alice: ["https://open.spotify.com/track/aaa?si=123"]
      bob: ["https://open.spotify.com/track/bbb"]
    ratings:
      alice: {bbb: 7.5}
      bob: {"https://open.spotify.com/track/aaa": 9}
    finished: [alice, bob]
  - title: March
    count: 2
    date: 2026-03-01T18:00:00Z
    end_date: 2026-03-04T18:00:00Z
`

func TestImportRounds(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	st, err := importRounds(ctx, repo, strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, importStats{Created: 2, Songs: 2, Ratings: 2}, st)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	feb := all[1]
	assert.Equal(t, "February", feb.Title)
	assert.Equal(t, "pl1", feb.Playlist.ID)
	assert.True(t, feb.RatingDeadline.Equal(time.Date(2026, 2, 4, 18, 0, 0, 0, time.UTC)))
	require.Len(t, feb.Songs, 2)
	assert.Equal(t, "aaa", feb.Songs[0].TrackID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, feb.FinishedRaters)

	res, err := rounds.Aggregate(feb, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Rankings[0].Submitter)

	st, err = importRounds(ctx, repo, strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Skipped)
	assert.Zero(t, st.Created)
}

const twoSongs = "    songs:\n      a: [\"https://open.spotify.com/track/t1\"]\n      b: [\"https://open.spotify.com/track/t2\"]\n"

func TestImportRoundsSnapsRatings(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	in := "rounds:\n  - title: X\n    count: 1\n    date: 2026-02-01T18:00:00Z\n" + twoSongs +
		"    ratings:\n      a: {t2: 7.30000001}\n"

	_, err := importRounds(ctx, repo, strings.NewReader(in))
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all[0].Ratings, 1)
	assert.Equal(t, 7.3, all[0].Ratings[0].Value)
}

func TestImportRoundsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing count": "rounds:\n  - title: X\n",
		"bad link":      "rounds:\n  - title: X\n    count: 1\n    songs:\n      a: [\"https://example.com/x\"]\n",
		"bad rating":    "rounds:\n  - title: X\n    count: 1\n" + twoSongs + "    ratings:\n      a: {t2: 11}\n",
		"own song":      "rounds:\n  - title: X\n    count: 1\n" + twoSongs + "    ratings:\n      a: {t1: 5}\n",
		"unknown track": "rounds:\n  - title: X\n    count: 1\n" + twoSongs + "    ratings:\n      a: {zzz: 5}\n",
		"not submitter": "rounds:\n  - title: X\n    count: 1\n" + twoSongs + "    ratings:\n      c: {t1: 5}\n",
		"not yaml":      "rounds: [",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := importRounds(context.Background(), newRepo(t), strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}
