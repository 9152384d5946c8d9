package rounds

import (
	"fmt"
	"sort"
	"time"

	"songrate/pkg/models"
)

type SubmitterScore struct {
	Submitter string
	Average   float64
}

// trackOrder returns each distinct track id once, in insertion order.
func trackOrder(r *models.Round) []string {
	seen := make(map[string]struct{}, len(r.Songs))
	out := make([]string, 0, len(r.Songs))
	for _, s := range r.Songs {
		if _, ok := seen[s.TrackID]; ok {
			continue
		}
		seen[s.TrackID] = struct{}{}
		out = append(out, s.TrackID)
	}
	return out
}

// AveragePerSong maps each submitted track id to the mean of its ratings.
// Tracks nobody rated have no entry.
func AveragePerSong(r *models.Round) map[string]float64 {
	submitted := make(map[string]struct{}, len(r.Songs))
	for _, s := range r.Songs {
		submitted[s.TrackID] = struct{}{}
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rt := range r.Ratings {
		if _, ok := submitted[rt.TrackID]; !ok {
			continue
		}
		sums[rt.TrackID] += rt.Value
		counts[rt.TrackID]++
	}

	out := make(map[string]float64, len(counts))
	for id, n := range counts {
		out[id] = sums[id] / float64(n)
	}
	return out
}

// BestAndWorst returns the tracks with the highest and lowest average.
// On ties the track submitted first wins. ok is false when no track has
// been rated.
func BestAndWorst(r *models.Round) (best, worst string, ok bool) {
	avgs := AveragePerSong(r)
	var hi, lo float64
	for _, id := range trackOrder(r) {
		v, rated := avgs[id]
		if !rated {
			continue
		}
		if !ok {
			best, worst, hi, lo, ok = id, id, v, v, true
			continue
		}
		if v > hi {
			best, hi = id, v
		}
		if v < lo {
			worst, lo = id, v
		}
	}
	return best, worst, ok
}

// PerSubmitterAverage ranks submitters by the mean of their songs' average
// ratings. This is an average of averages, not of raw rating values.
// Equal averages keep first-appearance order.
func PerSubmitterAverage(r *models.Round) []SubmitterScore {
	avgs := AveragePerSong(r)

	type acc struct {
		sum float64
		n   int
	}
	perSubmitter := make(map[string]*acc)
	counted := make(map[[2]string]struct{})
	for _, s := range r.Songs {
		v, rated := avgs[s.TrackID]
		if !rated {
			continue
		}
		key := [2]string{s.SubmittedBy, s.TrackID}
		if _, dup := counted[key]; dup {
			continue
		}
		counted[key] = struct{}{}
		a, ok := perSubmitter[s.SubmittedBy]
		if !ok {
			a = &acc{}
			perSubmitter[s.SubmittedBy] = a
		}
		a.sum += v
		a.n++
	}

	out := make([]SubmitterScore, 0, len(perSubmitter))
	for _, name := range Submitters(r) {
		a, ok := perSubmitter[name]
		if !ok {
			continue
		}
		out = append(out, SubmitterScore{Submitter: name, Average: a.sum / float64(a.n)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Average > out[j].Average })
	return out
}

// Aggregate computes the full results of a round. It refuses rounds that
// are not complete at now.
func Aggregate(r *models.Round, now time.Time) (*models.Results, error) {
	if stage := ResolveStage(r, now); stage != models.StageComplete {
		return nil, fmt.Errorf("%w: stage %s", ErrNotComplete, stage)
	}

	avgs := AveragePerSong(r)
	firstSong := make(map[string]models.Song, len(r.Songs))
	for _, s := range r.Songs {
		if _, ok := firstSong[s.TrackID]; !ok {
			firstSong[s.TrackID] = s
		}
	}
	ratingsBySong := make(map[string][]models.Rating)
	for _, rt := range r.Ratings {
		ratingsBySong[rt.TrackID] = append(ratingsBySong[rt.TrackID], rt)
	}

	res := &models.Results{
		RoundID:  r.ID,
		Title:    r.Title,
		Playlist: r.Playlist,
		Songs:    []models.SongResult{},
		Rankings: []models.SubmitterResult{},
	}

	for _, id := range trackOrder(r) {
		v, rated := avgs[id]
		if !rated {
			continue
		}
		s := firstSong[id]
		ratings := ratingsBySong[id]
		if ratings == nil {
			ratings = []models.Rating{}
		}
		res.Songs = append(res.Songs, models.SongResult{
			TrackID:        id,
			SubmittedBy:    s.SubmittedBy,
			TrackName:      s.TrackName,
			Artist:         s.Artist,
			Average:        v,
			AverageDisplay: FormatScore(v),
			Ratings:        ratings,
		})
	}
	sort.SliceStable(res.Songs, func(i, j int) bool { return res.Songs[i].Average > res.Songs[j].Average })

	if best, worst, ok := BestAndWorst(r); ok {
		for i := range res.Songs {
			if res.Songs[i].TrackID == best && res.Best == nil {
				b := res.Songs[i]
				res.Best = &b
			}
			if res.Songs[i].TrackID == worst && res.Worst == nil {
				w := res.Songs[i]
				res.Worst = &w
			}
		}
	}

	for i, sc := range PerSubmitterAverage(r) {
		res.Rankings = append(res.Rankings, models.SubmitterResult{
			Rank:           i + 1,
			Submitter:      sc.Submitter,
			Average:        sc.Average,
			AverageDisplay: FormatScore(sc.Average),
		})
	}
	return res, nil
}
