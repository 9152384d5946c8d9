package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songrate/internal/rounds"
	synchub "songrate/internal/sync"
	"songrate/pkg/models"
)

func TestParseRatings(t *testing.T) {
	got, err := parseRatings([]string{"abc=7.5", "https://open.spotify.com/track/xyz?si=1=9"})
	require.NoError(t, err)
	assert.Equal(t, []rounds.RatingInput{
		{TrackID: "abc", Value: 7.5},
		{TrackID: "https://open.spotify.com/track/xyz?si=1", Value: 9},
	}, got)

	for _, bad := range []string{"abc", "=5", "abc=", "abc=x", "abc=0.5", "abc=10.1", "abc=5.55"} {
		_, err := parseRatings([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	_, err := loadSession(path)
	assert.ErrorIs(t, err, errNotLoggedIn)

	assert.Error(t, (&session{}).save(path))
	require.NoError(t, (&session{Token: "tok", Username: "alice"}).save(path))
	got, err := loadSession(path)
	require.NoError(t, err)
	assert.Equal(t, &session{Token: "tok", Username: "alice"}, got)

	require.NoError(t, forgetSession(path))
	require.NoError(t, forgetSession(path))
}

func TestWebsocketURL(t *testing.T) {
	u, err := websocketURL("https://rate.example.com/api", "/ws")
	require.NoError(t, err)
	assert.Equal(t, "wss://rate.example.com/ws", u)

	u, err = websocketURL("http://localhost:8080", "/ws")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", u)

	_, err = websocketURL("localhost", "/ws")
	assert.Error(t, err)
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := parseWhen("2026-03-05T18:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC), got)

	got, err = parseWhen("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), got)

	_, err = parseWhen("next tuesday", now)
	assert.Error(t, err)
}

func TestAPIClientCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["v"]})
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid spotify track link","expected":"https://open.spotify.com/track/{songID}"}`))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	api := &apiClient{base: srv.URL, token: "tok", hc: srv.Client()}

	var out map[string]string
	require.NoError(t, api.call(ctx, http.MethodPost, "/ok", map[string]string{"v": "hi"}, &out))
	assert.Equal(t, "hi", out["echo"])

	err := api.call(ctx, http.MethodGet, "/bad", nil, nil)
	assert.EqualError(t, err, "invalid spotify track link (expected https://open.spotify.com/track/{songID})")

	err = api.call(ctx, http.MethodGet, "/other", nil, nil)
	assert.EqualError(t, err, "Internal Server Error: boom")
}

func TestDescribeEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line, err := json.Marshal(synchub.RoundEvent{
		Type:    synchub.EventRoundComplete,
		RoundID: "r1",
		Title:   "March",
		At:      now.Add(-2 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, `[2 minutes ago] "March" is complete, results are in`, describeEvent(line, now))

	line, _ = json.Marshal(synchub.RoundEvent{Type: synchub.EventRoundRatings, RoundID: "r1"})
	assert.Equal(t, `someone rated songs in "r1"`, describeEvent(line, now))

	assert.Equal(t, "following round r2",
		describeEvent([]byte(`{"type":"following","transport":"tcp","round_id":"r2","clients":1}`), now))
	assert.Equal(t, `{"type":"welcome"}`, describeEvent([]byte(`{"type":"welcome"}`), now))
	assert.Equal(t, "not json", describeEvent([]byte("not json"), now))
}

func TestWriteResults(t *testing.T) {
	best := models.SongResult{TrackID: "y", SubmittedBy: "B", TrackName: "Song", Artist: "Band", AverageDisplay: "8"}
	worst := models.SongResult{TrackID: "x", SubmittedBy: "A", AverageDisplay: "6"}
	var buf bytes.Buffer
	writeResults(&buf, &models.Results{
		Title: "March",
		Best:  &best,
		Worst: &worst,
		Songs: []models.SongResult{best, worst},
		Rankings: []models.SubmitterResult{
			{Rank: 1, Submitter: "B", AverageDisplay: "8"},
			{Rank: 2, Submitter: "A", AverageDisplay: "6"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "best:  Song - Band (8) by B")
	assert.Contains(t, out, "worst: x (6) by A")
	assert.Contains(t, out, "1st")
	assert.Contains(t, out, "2nd")
}
