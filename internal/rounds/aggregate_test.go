package rounds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songrate/pkg/models"
)

func ratedRound() *models.Round {
	r := twoSubmitterRound()
	r.Ratings = []models.Rating{
		{TrackID: "Y", Rater: "A", Value: 8},
		{TrackID: "X", Rater: "B", Value: 6},
	}
	r.FinishedRaters = []string{"A", "B"}
	return r
}

func TestPerSubmitterAverage(t *testing.T) {
	got := PerSubmitterAverage(ratedRound())
	assert.Equal(t, []SubmitterScore{
		{Submitter: "B", Average: 8},
		{Submitter: "A", Average: 6},
	}, got)
}

func TestAveragePerSong(t *testing.T) {
	r := ratedRound()
	r.Ratings = append(r.Ratings, models.Rating{TrackID: "Y", Rater: "C", Value: 7})
	assert.Equal(t, map[string]float64{"X": 6, "Y": 7.5}, AveragePerSong(r))
}

func TestAveragePerSong_IgnoresUnknownTracks(t *testing.T) {
	r := ratedRound()
	r.Ratings = append(r.Ratings, models.Rating{TrackID: "nope", Rater: "A", Value: 10})
	_, ok := AveragePerSong(r)["nope"]
	assert.False(t, ok)
}

func TestBestAndWorst(t *testing.T) {
	best, worst, ok := BestAndWorst(ratedRound())
	require.True(t, ok)
	assert.Equal(t, "Y", best)
	assert.Equal(t, "X", worst)
}

func TestBestAndWorst_TiesGoToFirstSubmitted(t *testing.T) {
	r := ratedRound()
	r.Ratings = []models.Rating{
		{TrackID: "X", Rater: "B", Value: 5},
		{TrackID: "Y", Rater: "A", Value: 5},
	}
	best, worst, ok := BestAndWorst(r)
	require.True(t, ok)
	assert.Equal(t, "X", best)
	assert.Equal(t, "X", worst)
}

func TestBestAndWorst_NothingRated(t *testing.T) {
	r := twoSubmitterRound()
	_, _, ok := BestAndWorst(r)
	assert.False(t, ok)
}

func TestPerSubmitterAverage_AverageOfAverages(t *testing.T) {
	r := &models.Round{
		Songs: []models.Song{
			{TrackID: "s1", SubmittedBy: "A"},
			{TrackID: "s2", SubmittedBy: "A"},
			{TrackID: "s3", SubmittedBy: "B"},
		},
		Ratings: []models.Rating{
			{TrackID: "s1", Rater: "B", Value: 10},
			{TrackID: "s1", Rater: "C", Value: 10},
			{TrackID: "s1", Rater: "D", Value: 10},
			{TrackID: "s2", Rater: "B", Value: 4},
			{TrackID: "s3", Rater: "A", Value: 6.5},
		},
	}
	// A: (10 + 4) / 2, not (10+10+10+4) / 4
	got := PerSubmitterAverage(r)
	require.Len(t, got, 2)
	assert.Equal(t, SubmitterScore{Submitter: "A", Average: 7}, got[0])
	assert.Equal(t, SubmitterScore{Submitter: "B", Average: 6.5}, got[1])
}

func TestPerSubmitterAverage_StableOnTies(t *testing.T) {
	r := &models.Round{
		Songs: []models.Song{
			{TrackID: "s1", SubmittedBy: "C"},
			{TrackID: "s2", SubmittedBy: "A"},
			{TrackID: "s3", SubmittedBy: "B"},
		},
		Ratings: []models.Rating{
			{TrackID: "s1", Rater: "A", Value: 5},
			{TrackID: "s2", Rater: "B", Value: 5},
			{TrackID: "s3", Rater: "C", Value: 5},
		},
	}
	var names []string
	for _, s := range PerSubmitterAverage(r) {
		names = append(names, s.Submitter)
	}
	assert.Equal(t, []string{"C", "A", "B"}, names)
}

func TestPerSubmitterAverage_SkipsUnratedSubmitters(t *testing.T) {
	r := ratedRound()
	r.Songs = append(r.Songs, models.Song{TrackID: "Q", SubmittedBy: "C"})
	got := PerSubmitterAverage(r)
	assert.Len(t, got, 2)
	for _, s := range got {
		assert.NotEqual(t, "C", s.Submitter)
	}
}

func TestPerSubmitterAverage_SharedTrackCreditsBoth(t *testing.T) {
	r := &models.Round{
		Songs: []models.Song{
			{TrackID: "s1", SubmittedBy: "A"},
			{TrackID: "s1", SubmittedBy: "B"},
		},
		Ratings: []models.Rating{{TrackID: "s1", Rater: "C", Value: 9}},
	}
	assert.Equal(t, []SubmitterScore{
		{Submitter: "A", Average: 9},
		{Submitter: "B", Average: 9},
	}, PerSubmitterAverage(r))
}

func TestAggregate(t *testing.T) {
	res, err := Aggregate(ratedRound(), deadline.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "r1", res.RoundID)
	require.NotNil(t, res.Best)
	require.NotNil(t, res.Worst)
	assert.Equal(t, "Y", res.Best.TrackID)
	assert.Equal(t, "B", res.Best.SubmittedBy)
	assert.Equal(t, "X", res.Worst.TrackID)

	require.Len(t, res.Songs, 2)
	assert.Equal(t, "Y", res.Songs[0].TrackID)
	assert.Equal(t, "8", res.Songs[0].AverageDisplay)

	require.Len(t, res.Rankings, 2)
	assert.Equal(t, models.SubmitterResult{Rank: 1, Submitter: "B", Average: 8, AverageDisplay: "8"}, res.Rankings[0])
	assert.Equal(t, models.SubmitterResult{Rank: 2, Submitter: "A", Average: 6, AverageDisplay: "6"}, res.Rankings[1])
}

func TestAggregate_RejectsIncompleteRound(t *testing.T) {
	r := ratedRound()
	r.FinishedRaters = nil

	_, err := Aggregate(r, deadline.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotComplete)

	_, err = Aggregate(r, t0)
	assert.ErrorIs(t, err, ErrNotComplete)
}

func TestAggregate_EmptyRound(t *testing.T) {
	r := &models.Round{ID: "e", SubmissionDeadline: deadline, RatingDeadline: endDate}
	res, err := Aggregate(r, endDate.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, res.Best)
	assert.Nil(t, res.Worst)
	assert.Empty(t, res.Songs)
	assert.Empty(t, res.Rankings)
}
