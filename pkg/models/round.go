package models

import "time"

type Stage string

const (
	StageSubmitting Stage = "submitting"
	StageRating     Stage = "rating"
	StageComplete   Stage = "complete"
)

type Playlist struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Song is one submitted track. TrackID is the bare Spotify track id,
// never the full URL.
type Song struct {
	TrackID     string `json:"track_id"`
	SubmittedBy string `json:"submitted_by"`
	TrackName   string `json:"track_name,omitempty"`
	Artist      string `json:"artist,omitempty"`
}

type Rating struct {
	TrackID string  `json:"track_id"`
	Rater   string  `json:"rater"`
	Value   float64 `json:"value"`
}

// Round is the fully materialized round document: metadata plus every song,
// rating and finished rater. Songs keep insertion order.
type Round struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	SongCount          int       `json:"count"`
	SubmissionDeadline time.Time `json:"date"`
	RatingDeadline     time.Time `json:"end_date"`
	Playlist           Playlist  `json:"playlist"`
	Songs              []Song    `json:"songs"`
	Ratings            []Rating  `json:"rates"`
	FinishedRaters     []string  `json:"finished_raters"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewRound is the input for creating a round.
type NewRound struct {
	Title              string
	SongCount          int
	SubmissionDeadline time.Time
	RatingDeadline     time.Time
	Playlist           Playlist
}
