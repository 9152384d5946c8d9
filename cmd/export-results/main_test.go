package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songrate/internal/rounds"
	"songrate/pkg/database"
	"songrate/pkg/models"
)

func TestExportCompleteRounds(t *testing.T) {
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "rate.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	repo := rounds.NewRepo(db)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	done, err := repo.CreateRound(ctx, models.NewRound{
		Title: "Done, finally", SongCount: 1,
		SubmissionDeadline: now.Add(-72 * time.Hour),
		RatingDeadline:     now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = repo.CreateRound(ctx, models.NewRound{
		Title: "Open", SongCount: 1,
		SubmissionDeadline: now.Add(24 * time.Hour),
		RatingDeadline:     now.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, repo.ReplaceSongs(ctx, done, "A", []models.Song{{TrackID: "x", TrackName: "Ex"}}))
	require.NoError(t, repo.ReplaceSongs(ctx, done, "B", []models.Song{{TrackID: "y"}}))
	require.NoError(t, repo.AppendRatings(ctx, done, "A", []models.Rating{{TrackID: "y", Value: 6.5}}, true))
	require.NoError(t, repo.AppendRatings(ctx, done, "B", []models.Rating{{TrackID: "x", Value: 8}}, true))

	results, err := completeResults(ctx, repo, now)
	require.NoError(t, err)
	require.Len(t, results, 1)

	var songs, ranks bytes.Buffer
	require.NoError(t, writeSongResults(&songs, results))
	require.NoError(t, writeRankings(&ranks, results))

	assert.Equal(t,
		"round_id,round_title,track_id,track_name,artist,submitted_by,average,ratings\n"+
			done+",\"Done, finally\",x,Ex,,A,8,1\n"+
			done+",\"Done, finally\",y,,,B,6.5,1\n",
		songs.String())
	assert.Equal(t,
		"round_id,round_title,rank,submitter,average\n"+
			done+",\"Done, finally\",1,A,8\n"+
			done+",\"Done, finally\",2,B,6.5\n",
		ranks.String())
}

type closeFailer struct {
	bytes.Buffer
}

func (closeFailer) Close() error { return errors.New("disk full") }

func TestWriteAndCloseReportsCloseError(t *testing.T) {
	results := []*models.Results{{RoundID: "r1", Title: "March"}}

	err := writeAndClose(&closeFailer{}, results, writeRankings)
	assert.EqualError(t, err, "disk full")

	path := filepath.Join(t.TempDir(), "out", "rankings.csv")
	require.NoError(t, writeFile(path, results, writeRankings))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "round_id,round_title,rank,submitter,average")
}
