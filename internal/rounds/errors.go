package rounds

import "errors"

var (
	ErrNotFound       = errors.New("round not found")
	ErrDuplicateTitle = errors.New("round title already exists")
	ErrInvalidRound   = errors.New("invalid round")
	ErrWrongStage     = errors.New("round is not accepting this action")
	ErrInvalidLink    = errors.New("invalid spotify track link")
	ErrSongCount      = errors.New("wrong number of songs")
	ErrNotSubmitter   = errors.New("only submitters can rate this round")
	ErrUnknownSong    = errors.New("song is not part of this round")
	ErrOwnSong        = errors.New("cannot rate your own song")
	ErrInvalidRating  = errors.New("rating must be between 1 and 10 in steps of 0.1")
	ErrForbidden      = errors.New("admin only")
	ErrNotComplete    = errors.New("round is not complete")
)
