package sync

import "time"

const (
	EventRoundCreated  = "round.created"
	EventRoundSongs    = "round.songs"
	EventRoundRatings  = "round.ratings"
	EventRoundComplete = "round.complete"
	EventRoundPlaylist = "round.playlist"
)

// RoundEvent is one line on the sync stream. Actor is the display name of
// the user who caused it; it is left empty on events that would reveal who
// submitted which song.
type RoundEvent struct {
	Type    string    `json:"type"`
	RoundID string    `json:"round_id"`
	Title   string    `json:"title,omitempty"`
	Actor   string    `json:"actor,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	At      time.Time `json:"at"`
}
