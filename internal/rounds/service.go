package rounds

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"songrate/internal/spotify"
	hub "songrate/internal/sync"
	"songrate/pkg/models"
)

// Store is the persistence the service needs. *Repo implements it.
type Store interface {
	CreateRound(ctx context.Context, nr models.NewRound) (string, error)
	GetRound(ctx context.Context, id string) (*models.Round, error)
	ReplaceSongs(ctx context.Context, roundID, submitter string, songs []models.Song) error
	AppendRatings(ctx context.Context, roundID, rater string, ratings []models.Rating, finished bool) error
	ListRounds(ctx context.Context, caller string, now time.Time) ([]*models.Round, error)
	SetPlaylist(ctx context.Context, roundID string, p models.Playlist) error
}

type TrackLookup interface {
	Lookup(ctx context.Context, ids []string) (map[string]spotify.TrackInfo, error)
}

type ResultsCache interface {
	GetResults(ctx context.Context, roundID string) (*models.Results, bool, error)
	SetResults(ctx context.Context, res *models.Results) error
}

type Publisher interface {
	Publish(ev hub.RoundEvent)
}

type Recorder interface {
	RoundCreated()
	SongsSubmitted(n int)
	RatingsRecorded(n int)
	RoundCompleted()
	ResultsLookup(hit bool)
}

// Caller identifies who is acting. Name is the display name stored as
// submitter and rater.
type Caller struct {
	Name    string
	IsAdmin bool
}

type RatingInput struct {
	TrackID string  `json:"track_id" binding:"required"`
	Value   float64 `json:"value" binding:"required"`
}

type Service struct {
	store   Store
	tracks  TrackLookup
	cache   ResultsCache
	events  Publisher
	metrics Recorder
	flight  singleflight.Group

	Now func() time.Time
}

type Option func(*Service)

func WithTrackLookup(t TrackLookup) Option { return func(s *Service) { s.tracks = t } }
func WithCache(c ResultsCache) Option      { return func(s *Service) { s.cache = c } }
func WithPublisher(p Publisher) Option     { return func(s *Service) { s.events = p } }
func WithMetrics(m Recorder) Option        { return func(s *Service) { s.metrics = m } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		metrics: nopRecorder{},
		Now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) publish(ev hub.RoundEvent) {
	if s.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.Now().UTC()
	}
	s.events.Publish(ev)
}

func (s *Service) load(ctx context.Context, id string) (*models.Round, error) {
	r, err := s.store.GetRound(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil || r.SongCount <= 0 {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *Service) CreateRound(ctx context.Context, caller Caller, nr models.NewRound) (string, error) {
	if !caller.IsAdmin {
		return "", ErrForbidden
	}
	nr.Title = strings.TrimSpace(nr.Title)
	switch {
	case nr.Title == "":
		return "", fmt.Errorf("%w: title required", ErrInvalidRound)
	case nr.SongCount <= 0:
		return "", fmt.Errorf("%w: count must be positive", ErrInvalidRound)
	case nr.SubmissionDeadline.IsZero():
		return "", fmt.Errorf("%w: date required", ErrInvalidRound)
	case !nr.RatingDeadline.IsZero() && !nr.RatingDeadline.After(nr.SubmissionDeadline):
		return "", fmt.Errorf("%w: end_date must be after date", ErrInvalidRound)
	}

	id, err := s.store.CreateRound(ctx, nr)
	if err != nil {
		return "", err
	}
	s.metrics.RoundCreated()
	log.Printf("[rounds] created %q (%s) by %s", nr.Title, id, caller.Name)
	s.publish(hub.RoundEvent{Type: hub.EventRoundCreated, RoundID: id, Title: nr.Title, Actor: caller.Name, Stage: string(models.StageSubmitting)})
	return id, nil
}

// GetRound returns the round as caller may see it at now. Before completion
// submitters are masked and only the caller's own ratings are exposed.
func (s *Service) GetRound(ctx context.Context, caller Caller, id string, now time.Time) (*models.RoundView, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	stage := ResolveStage(r, now)

	view := &models.RoundView{
		ID:                 r.ID,
		Title:              r.Title,
		SongCount:          r.SongCount,
		SubmissionDeadline: r.SubmissionDeadline,
		RatingDeadline:     r.RatingDeadline,
		Playlist:           r.Playlist,
		Stage:              stage,
		IsCompleted:        stage == models.StageComplete,
		Songs:              []models.SongView{},
		Finished:           HasFinished(r, caller.Name),
	}

	mine := callerRatings(r, caller.Name)

	switch stage {
	case models.StageSubmitting:
		for _, song := range r.Songs {
			if song.SubmittedBy != caller.Name {
				continue
			}
			view.Songs = append(view.Songs, songView(song, youName, 0))
		}

	case models.StageRating:
		view.PendingRaters = PendingRaters(r)
		for _, song := range uniqueSongs(r, caller.Name) {
			who := notYouName
			rating, ok := mine[song.TrackID]
			if song.SubmittedBy == caller.Name {
				who, rating = youName, 0
			} else if !ok {
				rating = 1
			}
			view.Songs = append(view.Songs, songView(song, who, rating))
		}

	case models.StageComplete:
		for _, song := range r.Songs {
			view.Songs = append(view.Songs, songView(song, song.SubmittedBy, mine[song.TrackID]))
		}
		res, err := s.Results(ctx, caller, id, now)
		if err != nil {
			return nil, err
		}
		view.Results = res
	}
	return view, nil
}

func songView(song models.Song, who string, rating float64) models.SongView {
	return models.SongView{
		TrackID:     song.TrackID,
		SubmittedBy: who,
		TrackName:   song.TrackName,
		Artist:      song.Artist,
		Rating:      rating,
	}
}

// uniqueSongs lists each track once. A track submitted by several people is
// attributed to caller when caller is one of them.
func uniqueSongs(r *models.Round, caller string) []models.Song {
	idx := make(map[string]int, len(r.Songs))
	out := make([]models.Song, 0, len(r.Songs))
	for _, song := range r.Songs {
		if i, ok := idx[song.TrackID]; ok {
			if song.SubmittedBy == caller {
				out[i].SubmittedBy = caller
			}
			continue
		}
		idx[song.TrackID] = len(out)
		out = append(out, song)
	}
	return out
}

func callerRatings(r *models.Round, caller string) map[string]float64 {
	out := make(map[string]float64)
	for _, rt := range r.Ratings {
		if rt.Rater == caller {
			out[rt.TrackID] = rt.Value
		}
	}
	return out
}

// SubmitSongs replaces caller's songs in the round with links.
func (s *Service) SubmitSongs(ctx context.Context, caller Caller, id string, links []string, now time.Time) ([]models.Song, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ResolveStage(r, now) != models.StageSubmitting {
		return nil, fmt.Errorf("%w: submissions are closed", ErrWrongStage)
	}

	seen := make(map[string]struct{}, len(links))
	ids := make([]string, 0, len(links))
	for _, link := range links {
		if !spotify.IsValidLink(link) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLink, link)
		}
		tid := spotify.CanonicalID(link)
		if _, dup := seen[tid]; dup {
			continue
		}
		seen[tid] = struct{}{}
		ids = append(ids, tid)
	}
	if len(ids) == 0 || len(ids) > r.SongCount {
		return nil, fmt.Errorf("%w: submit between 1 and %d songs", ErrSongCount, r.SongCount)
	}

	var info map[string]spotify.TrackInfo
	if s.tracks != nil {
		info, err = s.tracks.Lookup(ctx, ids)
		if err != nil {
			log.Printf("[rounds] track lookup: %v", err)
		}
	}

	songs := make([]models.Song, 0, len(ids))
	for _, tid := range ids {
		songs = append(songs, models.Song{
			TrackID:     tid,
			SubmittedBy: caller.Name,
			TrackName:   info[tid].Name,
			Artist:      info[tid].Artist,
		})
	}
	if err := s.store.ReplaceSongs(ctx, id, caller.Name, songs); err != nil {
		return nil, err
	}

	s.metrics.SongsSubmitted(len(songs))
	s.publish(hub.RoundEvent{Type: hub.EventRoundSongs, RoundID: id, Title: r.Title, Actor: caller.Name, Stage: string(models.StageSubmitting)})
	return songs, nil
}

// ValidRating reports whether v lies in [1,10] on the 0.1 grid.
func ValidRating(v float64) bool {
	if math.IsNaN(v) || v < 1 || v > 10 {
		return false
	}
	tenths := v * 10
	return math.Abs(tenths-math.Round(tenths)) < 1e-6
}

// NormalizeRatings checks rater's ratings against the round's songs and
// rounds each value to the 0.1 grid. Track ids may be given as links. A
// later rating of the same track replaces an earlier one.
func NormalizeRatings(songs []models.Song, rater string, in []RatingInput) ([]models.Rating, error) {
	inRound := make(map[string]struct{}, len(songs))
	own := make(map[string]struct{})
	for _, song := range songs {
		inRound[song.TrackID] = struct{}{}
		if song.SubmittedBy == rater {
			own[song.TrackID] = struct{}{}
		}
	}

	idx := make(map[string]int, len(in))
	ratings := make([]models.Rating, 0, len(in))
	for _, ri := range in {
		tid := strings.TrimSpace(ri.TrackID)
		if spotify.IsValidLink(tid) {
			tid = spotify.CanonicalID(tid)
		}
		if _, ok := inRound[tid]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSong, tid)
		}
		if _, ok := own[tid]; ok {
			return nil, fmt.Errorf("%w: %s", ErrOwnSong, tid)
		}
		if !ValidRating(ri.Value) {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidRating, ri.Value)
		}
		rt := models.Rating{TrackID: tid, Rater: rater, Value: math.Round(ri.Value*10) / 10}
		if i, dup := idx[tid]; dup {
			ratings[i] = rt
			continue
		}
		idx[tid] = len(ratings)
		ratings = append(ratings, rt)
	}
	return ratings, nil
}

// SubmitRatings records caller's ratings. Unless saveForLater is set the
// caller is marked finished, which may complete the round.
func (s *Service) SubmitRatings(ctx context.Context, caller Caller, id string, in []RatingInput, saveForLater bool, now time.Time) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if ResolveStage(r, now) != models.StageRating {
		return fmt.Errorf("%w: round is not in rating", ErrWrongStage)
	}
	if !IsSubmitter(r, caller.Name) {
		return ErrNotSubmitter
	}

	ratings, err := NormalizeRatings(r.Songs, caller.Name, in)
	if err != nil {
		return err
	}

	if err := s.store.AppendRatings(ctx, id, caller.Name, ratings, !saveForLater); err != nil {
		return err
	}
	s.metrics.RatingsRecorded(len(ratings))
	s.publish(hub.RoundEvent{Type: hub.EventRoundRatings, RoundID: id, Title: r.Title, Actor: caller.Name, Stage: string(models.StageRating)})

	if saveForLater {
		return nil
	}
	after, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if ResolveStage(after, now) == models.StageComplete {
		s.metrics.RoundCompleted()
		log.Printf("[rounds] %q complete", after.Title)
		s.publish(hub.RoundEvent{Type: hub.EventRoundComplete, RoundID: id, Title: after.Title, Stage: string(models.StageComplete)})
		if _, err := s.Results(ctx, caller, id, now); err != nil {
			log.Printf("[rounds] warm results %s: %v", id, err)
		}
	}
	return nil
}

// ListRounds returns the rounds caller can see: open ones and past ones they
// took part in.
func (s *Service) ListRounds(ctx context.Context, caller Caller, now time.Time) ([]models.RoundSummary, error) {
	rounds, err := s.store.ListRounds(ctx, caller.Name, now)
	if err != nil {
		return nil, err
	}
	out := make([]models.RoundSummary, 0, len(rounds))
	for _, r := range rounds {
		if r.SongCount <= 0 {
			continue
		}
		out = append(out, models.RoundSummary{
			ID:                 r.ID,
			Title:              r.Title,
			SongCount:          r.SongCount,
			SubmissionDeadline: r.SubmissionDeadline,
			RatingDeadline:     r.RatingDeadline,
			Stage:              ResolveStage(r, now),
			Submitters:         Submitters(r),
			Waiting:            WaitingMessage(r, caller.Name, now),
		})
	}
	return out, nil
}

func (s *Service) SetPlaylist(ctx context.Context, caller Caller, id string, p models.Playlist) error {
	if !caller.IsAdmin {
		return ErrForbidden
	}
	p.ID = strings.TrimSpace(p.ID)
	p.URL = strings.TrimSpace(p.URL)
	if p.ID == "" && p.URL == "" {
		return fmt.Errorf("%w: playlist id or url required", ErrInvalidRound)
	}
	if err := s.store.SetPlaylist(ctx, id, p); err != nil {
		return err
	}
	s.publish(hub.RoundEvent{Type: hub.EventRoundPlaylist, RoundID: id, Actor: caller.Name})

	// cached results carry the playlist
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if s.cache != nil && ResolveStage(r, s.Now()) == models.StageComplete {
		if res, err := Aggregate(r, s.Now()); err == nil {
			if err := s.cache.SetResults(ctx, res); err != nil {
				log.Printf("[rounds] refresh cached results %s: %v", id, err)
			}
		}
	}
	return nil
}

// Results returns aggregated results of a complete round. Completed rounds
// never change, so results are served from the cache when present.
func (s *Service) Results(ctx context.Context, caller Caller, id string, now time.Time) (*models.Results, error) {
	if s.cache != nil {
		res, ok, err := s.cache.GetResults(ctx, id)
		if err != nil {
			log.Printf("[rounds] cache get %s: %v", id, err)
		}
		if ok {
			s.metrics.ResultsLookup(true)
			return res, nil
		}
	}
	s.metrics.ResultsLookup(false)

	v, err, _ := s.flight.Do(id, func() (any, error) {
		r, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		res, err := Aggregate(r, now)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetResults(ctx, res); err != nil {
				log.Printf("[rounds] cache set %s: %v", id, err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Results), nil
}

type nopRecorder struct{}

func (nopRecorder) RoundCreated()       {}
func (nopRecorder) SongsSubmitted(int)  {}
func (nopRecorder) RatingsRecorded(int) {}
func (nopRecorder) RoundCompleted()     {}
func (nopRecorder) ResultsLookup(bool)  {}
