package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"songrate/internal/rounds"
	"songrate/pkg/database"
	"songrate/pkg/models"
	"songrate/pkg/utils"
)

func main() {
	var (
		songsOut    = flag.String("songs", "data/song_results.csv", "output CSV path for per-song averages")
		rankingsOut = flag.String("rankings", "data/rankings.csv", "output CSV path for submitter rankings")
	)
	flag.Parse()
	utils.LoadEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	results, err := completeResults(ctx, rounds.NewRepo(db), time.Now())
	if err != nil {
		log.Fatalf("load results failed: %v", err)
	}

	if err := writeFile(*songsOut, results, writeSongResults); err != nil {
		log.Fatalf("export song results failed: %v", err)
	}
	if err := writeFile(*rankingsOut, results, writeRankings); err != nil {
		log.Fatalf("export rankings failed: %v", err)
	}

	log.Printf("[export] %d complete rounds to %s and %s", len(results), *songsOut, *rankingsOut)
}

// completeResults aggregates every round that is complete at now, newest
// first. Rounds still in progress are left out.
func completeResults(ctx context.Context, repo *rounds.Repo, now time.Time) ([]*models.Results, error) {
	all, err := repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Results
	for _, r := range all {
		if rounds.ResolveStage(r, now) != models.StageComplete {
			continue
		}
		res, err := rounds.Aggregate(r, now)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func writeFile(path string, results []*models.Results, write func(io.Writer, []*models.Results) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeAndClose(f, results, write)
}

// writeAndClose reports a failed Close when write itself succeeded.
func writeAndClose(wc io.WriteCloser, results []*models.Results, write func(io.Writer, []*models.Results) error) error {
	if err := write(wc, results); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

func writeSongResults(out io.Writer, results []*models.Results) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"round_id", "round_title", "track_id", "track_name", "artist", "submitted_by", "average", "ratings"}); err != nil {
		return err
	}
	for _, res := range results {
		for _, s := range res.Songs {
			if err := w.Write([]string{
				res.RoundID,
				res.Title,
				s.TrackID,
				s.TrackName,
				s.Artist,
				s.SubmittedBy,
				s.AverageDisplay,
				strconv.Itoa(len(s.Ratings)),
			}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func writeRankings(out io.Writer, results []*models.Results) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"round_id", "round_title", "rank", "submitter", "average"}); err != nil {
		return err
	}
	for _, res := range results {
		for _, r := range res.Rankings {
			if err := w.Write([]string{
				res.RoundID,
				res.Title,
				strconv.Itoa(r.Rank),
				r.Submitter,
				r.AverageDisplay,
			}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
