package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"songrate/internal/rounds"
	"songrate/internal/spotify"
	"songrate/pkg/database"
	"songrate/pkg/models"
	"songrate/pkg/utils"
)

// roundFile is the import format. Songs and ratings are optional and let
// finished rounds be carried over from another instance.
type roundFile struct {
	Rounds []roundEntry `yaml:"rounds"`
}

type roundEntry struct {
	Title    string                        `yaml:"title"`
	Count    int                           `yaml:"count"`
	Date     time.Time                     `yaml:"date"`
	EndDate  time.Time                     `yaml:"end_date"`
	Playlist models.Playlist               `yaml:"playlist"`
	Songs    map[string][]string           `yaml:"songs"`
	Ratings  map[string]map[string]float64 `yaml:"ratings"`
	Finished []string                      `yaml:"finished"`
}

type importStats struct {
	Created int
	Skipped int
	Songs   int
	Ratings int
}

func main() {
	in := flag.String("file", "data/rounds.yaml", "input YAML path")
	flag.Parse()
	utils.LoadEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	f, err := os.Open(*in)
	if err != nil {
		log.Fatalf("open %s: %v", *in, err)
	}
	defer f.Close()

	st, err := importRounds(ctx, rounds.NewRepo(db), f)
	if err != nil {
		log.Fatalf("import rounds failed: %v", err)
	}
	log.Printf("[import] %d rounds created, %d skipped, %d songs, %d ratings from %s",
		st.Created, st.Skipped, st.Songs, st.Ratings, *in)
}

func importRounds(ctx context.Context, repo *rounds.Repo, r io.Reader) (importStats, error) {
	var st importStats
	var file roundFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return st, fmt.Errorf("decode yaml: %w", err)
	}

	for i, e := range file.Rounds {
		if e.Title == "" || e.Count <= 0 {
			return st, fmt.Errorf("round %d: title and positive count required", i+1)
		}
		id, err := repo.CreateRound(ctx, models.NewRound{
			Title:              e.Title,
			SongCount:          e.Count,
			SubmissionDeadline: e.Date,
			RatingDeadline:     e.EndDate,
			Playlist:           e.Playlist,
		})
		if errors.Is(err, rounds.ErrDuplicateTitle) {
			log.Printf("[import] skip %q: already exists", e.Title)
			st.Skipped++
			continue
		}
		if err != nil {
			return st, fmt.Errorf("create %q: %w", e.Title, err)
		}
		st.Created++

		var imported []models.Song
		for _, who := range sortedKeys(e.Songs) {
			songs, err := toSongs(who, e.Songs[who])
			if err != nil {
				return st, fmt.Errorf("%q songs for %s: %w", e.Title, who, err)
			}
			if err := repo.ReplaceSongs(ctx, id, who, songs); err != nil {
				return st, err
			}
			imported = append(imported, songs...)
			st.Songs += len(songs)
		}

		finished := make(map[string]bool, len(e.Finished))
		for _, name := range e.Finished {
			finished[name] = true
		}
		for _, who := range sortedKeys(e.Ratings) {
			ratings, err := toRatings(imported, who, e.Ratings[who])
			if err != nil {
				return st, fmt.Errorf("%q ratings for %s: %w", e.Title, who, err)
			}
			if err := repo.AppendRatings(ctx, id, who, ratings, finished[who]); err != nil {
				return st, err
			}
			delete(finished, who)
			st.Ratings += len(ratings)
		}
		for _, who := range sortedKeys(finished) {
			if err := repo.AppendRatings(ctx, id, who, nil, true); err != nil {
				return st, err
			}
		}
	}
	return st, nil
}

func toSongs(who string, links []string) ([]models.Song, error) {
	out := make([]models.Song, 0, len(links))
	for _, l := range links {
		id := spotify.CanonicalID(l)
		if id == "" {
			return nil, fmt.Errorf("%w: %s", rounds.ErrInvalidLink, l)
		}
		out = append(out, models.Song{TrackID: id, SubmittedBy: who})
	}
	return out, nil
}

// toRatings applies the same checks as a live rating: who must have
// submitted, may not rate their own songs and only rates tracks in songs.
func toRatings(songs []models.Song, who string, in map[string]float64) ([]models.Rating, error) {
	if !rounds.IsSubmitter(&models.Round{Songs: songs}, who) {
		return nil, rounds.ErrNotSubmitter
	}
	inputs := make([]rounds.RatingInput, 0, len(in))
	for _, track := range sortedKeys(in) {
		inputs = append(inputs, rounds.RatingInput{TrackID: track, Value: in[track]})
	}
	return rounds.NormalizeRatings(songs, who, inputs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
