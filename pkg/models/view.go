package models

import "time"

// SongView is a song as shown to a caller before the round completes.
// SubmittedBy is masked to "You" or "Not you" and Rating carries the
// caller's own current value.
type SongView struct {
	TrackID     string  `json:"track_id"`
	SubmittedBy string  `json:"submitted_by"`
	TrackName   string  `json:"track_name,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Rating      float64 `json:"rating"`
}

type RoundView struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	SongCount          int        `json:"count"`
	SubmissionDeadline time.Time  `json:"date"`
	RatingDeadline     time.Time  `json:"end_date"`
	Playlist           Playlist   `json:"playlist"`
	Stage              Stage      `json:"stage"`
	IsCompleted        bool       `json:"is_completed"`
	Songs              []SongView `json:"songs"`
	PendingRaters      []string   `json:"pending_raters,omitempty"`
	Finished           bool       `json:"finished"`
	Results            *Results   `json:"results,omitempty"`
}

type RoundSummary struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	SongCount          int       `json:"count"`
	SubmissionDeadline time.Time `json:"date"`
	RatingDeadline     time.Time `json:"end_date"`
	Stage              Stage     `json:"stage"`
	Submitters         []string  `json:"songs"`
	Waiting            string    `json:"waiting"`
}

type SongResult struct {
	TrackID        string   `json:"track_id"`
	SubmittedBy    string   `json:"submitted_by"`
	TrackName      string   `json:"track_name,omitempty"`
	Artist         string   `json:"artist,omitempty"`
	Average        float64  `json:"average"`
	AverageDisplay string   `json:"average_display"`
	Ratings        []Rating `json:"ratings"`
}

type SubmitterResult struct {
	Rank           int     `json:"rank"`
	Submitter      string  `json:"submitter"`
	Average        float64 `json:"average"`
	AverageDisplay string  `json:"average_display"`
}

// Results is the aggregated outcome of a complete round.
type Results struct {
	RoundID  string            `json:"round_id"`
	Title    string            `json:"title"`
	Playlist Playlist          `json:"playlist"`
	Best     *SongResult       `json:"best,omitempty"`
	Worst    *SongResult       `json:"worst,omitempty"`
	Songs    []SongResult      `json:"songs"`
	Rankings []SubmitterResult `json:"rankings"`
}
