package rounds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"songrate/pkg/models"
)

// Repo persists rounds in SQL. Queries are written with '?' placeholders and
// rebound for the connected driver, so the same code serves sqlite3 and
// postgres.
type Repo struct {
	DB *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db}
}

type roundRow struct {
	ID                 string `db:"id"`
	Title              string `db:"title"`
	SongCount          int    `db:"song_count"`
	SubmissionDeadline int64  `db:"submission_deadline"`
	RatingDeadline     int64  `db:"rating_deadline"`
	PlaylistID         string `db:"playlist_id"`
	PlaylistURL        string `db:"playlist_url"`
	CreatedAt          int64  `db:"created_at"`
}

type songRow struct {
	TrackID     string `db:"track_id"`
	SubmittedBy string `db:"submitted_by"`
	TrackName   string `db:"track_name"`
	Artist      string `db:"artist"`
}

type ratingRow struct {
	TrackID string  `db:"track_id"`
	Rater   string  `db:"rater"`
	Value   float64 `db:"value"`
}

const roundColumns = `id, title, song_count, submission_deadline, rating_deadline, playlist_id, playlist_url, created_at`

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (r *Repo) q(query string) string {
	return r.DB.Rebind(query)
}

func (r *Repo) CreateRound(ctx context.Context, nr models.NewRound) (string, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, r.q(`SELECT COUNT(*) FROM rounds WHERE title = ?`), nr.Title); err != nil {
		return "", fmt.Errorf("check title: %w", err)
	}
	if n > 0 {
		return "", ErrDuplicateTitle
	}

	id := uuid.NewString()
	if err := r.insertRound(ctx, id, nr); err != nil {
		return "", err
	}
	return id, nil
}

// insertRound maps a lost race on the title constraint to ErrDuplicateTitle.
func (r *Repo) insertRound(ctx context.Context, id string, nr models.NewRound) error {
	_, err := r.DB.ExecContext(ctx, r.q(`
		INSERT INTO rounds (`+roundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), id, nr.Title, nr.SongCount, toMillis(nr.SubmissionDeadline), toMillis(nr.RatingDeadline),
		nr.Playlist.ID, nr.Playlist.URL, time.Now().UnixMilli())
	if isUniqueViolation(err) {
		return ErrDuplicateTitle
	}
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// GetRound loads a round with its songs, ratings and finished raters.
// It returns nil, nil when no such round exists.
func (r *Repo) GetRound(ctx context.Context, id string) (*models.Round, error) {
	var row roundRow
	err := r.DB.GetContext(ctx, &row, r.q(`SELECT `+roundColumns+` FROM rounds WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get round: %w", err)
	}
	return r.hydrate(ctx, row)
}

func (r *Repo) hydrate(ctx context.Context, row roundRow) (*models.Round, error) {
	round := &models.Round{
		ID:                 row.ID,
		Title:              row.Title,
		SongCount:          row.SongCount,
		SubmissionDeadline: fromMillis(row.SubmissionDeadline),
		RatingDeadline:     fromMillis(row.RatingDeadline),
		Playlist:           models.Playlist{ID: row.PlaylistID, URL: row.PlaylistURL},
		CreatedAt:          fromMillis(row.CreatedAt),
		Songs:              []models.Song{},
		Ratings:            []models.Rating{},
		FinishedRaters:     []string{},
	}

	var songs []songRow
	if err := r.DB.SelectContext(ctx, &songs, r.q(`
		SELECT track_id, submitted_by, track_name, artist
		FROM songs
		WHERE round_id = ?
		ORDER BY position ASC
	`), row.ID); err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	for _, s := range songs {
		round.Songs = append(round.Songs, models.Song(s))
	}

	var ratings []ratingRow
	if err := r.DB.SelectContext(ctx, &ratings, r.q(`
		SELECT track_id, rater, value
		FROM ratings
		WHERE round_id = ?
		ORDER BY updated_at ASC, rater ASC, track_id ASC
	`), row.ID); err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	for _, rt := range ratings {
		round.Ratings = append(round.Ratings, models.Rating(rt))
	}

	if err := r.DB.SelectContext(ctx, &round.FinishedRaters, r.q(`
		SELECT rater FROM finished_raters
		WHERE round_id = ?
		ORDER BY finished_at ASC, rater ASC
	`), row.ID); err != nil {
		return nil, fmt.Errorf("list finished raters: %w", err)
	}
	return round, nil
}

// ReplaceSongs drops every song submitter has in the round and inserts songs
// after all remaining entries.
func (r *Repo) ReplaceSongs(ctx context.Context, roundID, submitter string, songs []models.Song) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		DELETE FROM songs WHERE round_id = ? AND submitted_by = ?
	`), roundID, submitter); err != nil {
		return fmt.Errorf("delete songs: %w", err)
	}

	var maxPos sql.NullInt64
	if err := tx.GetContext(ctx, &maxPos, tx.Rebind(`
		SELECT MAX(position) FROM songs WHERE round_id = ?
	`), roundID); err != nil {
		return fmt.Errorf("max position: %w", err)
	}
	next := maxPos.Int64 + 1

	now := time.Now().UnixMilli()
	for i, s := range songs {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO songs (round_id, track_id, submitted_by, track_name, artist, added_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`), roundID, s.TrackID, submitter, s.TrackName, s.Artist, now, next+int64(i)); err != nil {
			return fmt.Errorf("insert song: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit songs: %w", err)
	}
	return nil
}

// AppendRatings upserts one rating per (track, rater). When finished is set
// the rater is also recorded as done with the round.
func (r *Repo) AppendRatings(ctx context.Context, roundID, rater string, ratings []models.Rating, finished bool) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, rt := range ratings {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO ratings (round_id, track_id, rater, value, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (round_id, track_id, rater)
			DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`), roundID, rt.TrackID, rater, rt.Value, now); err != nil {
			return fmt.Errorf("upsert rating: %w", err)
		}
	}

	if finished {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO finished_raters (round_id, rater, finished_at)
			VALUES (?, ?, ?)
			ON CONFLICT (round_id, rater) DO NOTHING
		`), roundID, rater, now); err != nil {
			return fmt.Errorf("mark finished: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ratings: %w", err)
	}
	return nil
}

// ListRounds returns rounds whose submission window is still open, soonest
// first, followed by closed rounds caller submitted to, newest first.
func (r *Repo) ListRounds(ctx context.Context, caller string, now time.Time) ([]*models.Round, error) {
	nowMs := now.UnixMilli()

	var upcoming []roundRow
	if err := r.DB.SelectContext(ctx, &upcoming, r.q(`
		SELECT `+roundColumns+` FROM rounds
		WHERE submission_deadline > ?
		ORDER BY submission_deadline ASC, title ASC
	`), nowMs); err != nil {
		return nil, fmt.Errorf("list upcoming rounds: %w", err)
	}

	var past []roundRow
	if err := r.DB.SelectContext(ctx, &past, r.q(`
		SELECT `+roundColumns+` FROM rounds
		WHERE submission_deadline <= ?
		  AND id IN (SELECT round_id FROM songs WHERE submitted_by = ?)
		ORDER BY submission_deadline DESC, title ASC
	`), nowMs, caller); err != nil {
		return nil, fmt.Errorf("list past rounds: %w", err)
	}

	out := make([]*models.Round, 0, len(upcoming)+len(past))
	for _, row := range append(upcoming, past...) {
		round, err := r.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, round)
	}
	return out, nil
}

// ListAll returns every round, newest submission deadline first.
func (r *Repo) ListAll(ctx context.Context) ([]*models.Round, error) {
	var rows []roundRow
	if err := r.DB.SelectContext(ctx, &rows, `
		SELECT `+roundColumns+` FROM rounds
		ORDER BY submission_deadline DESC, title ASC
	`); err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	out := make([]*models.Round, 0, len(rows))
	for _, row := range rows {
		round, err := r.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, round)
	}
	return out, nil
}

func (r *Repo) SetPlaylist(ctx context.Context, roundID string, p models.Playlist) error {
	res, err := r.DB.ExecContext(ctx, r.q(`
		UPDATE rounds SET playlist_id = ?, playlist_url = ? WHERE id = ?
	`), p.ID, p.URL, roundID)
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping backs the readiness probe.
func (r *Repo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
