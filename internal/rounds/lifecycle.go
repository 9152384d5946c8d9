package rounds

import (
	"time"

	"songrate/pkg/models"
)

// ResolveStage reports where a round is at instant now.
//
// Submissions close at the submission deadline. After that the round is
// complete once the rating deadline has passed or once the finished raters
// are exactly the submitters. A zero rating deadline never passes.
func ResolveStage(r *models.Round, now time.Time) models.Stage {
	if now.Before(r.SubmissionDeadline) {
		return models.StageSubmitting
	}
	if ratingDeadlinePassed(r, now) || EveryoneFinished(r) {
		return models.StageComplete
	}
	return models.StageRating
}

func ratingDeadlinePassed(r *models.Round, now time.Time) bool {
	return !r.RatingDeadline.IsZero() && now.After(r.RatingDeadline)
}

// Submitters returns each distinct submitter once, in order of first song.
func Submitters(r *models.Round) []string {
	seen := make(map[string]struct{}, len(r.Songs))
	out := make([]string, 0, len(r.Songs))
	for _, s := range r.Songs {
		if _, ok := seen[s.SubmittedBy]; ok {
			continue
		}
		seen[s.SubmittedBy] = struct{}{}
		out = append(out, s.SubmittedBy)
	}
	return out
}

// EveryoneFinished is true when the finished raters and the submitters are
// the same non-empty set.
func EveryoneFinished(r *models.Round) bool {
	submitters := Submitters(r)
	if len(submitters) == 0 {
		return false
	}
	finished := toSet(r.FinishedRaters)
	if len(finished) != len(submitters) {
		return false
	}
	for _, s := range submitters {
		if _, ok := finished[s]; !ok {
			return false
		}
	}
	return true
}

// PendingRaters lists submitters that have not marked themselves finished.
func PendingRaters(r *models.Round) []string {
	finished := toSet(r.FinishedRaters)
	out := []string{}
	for _, s := range Submitters(r) {
		if _, ok := finished[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func IsSubmitter(r *models.Round, name string) bool {
	for _, s := range r.Songs {
		if s.SubmittedBy == name {
			return true
		}
	}
	return false
}

func HasFinished(r *models.Round, name string) bool {
	for _, f := range r.FinishedRaters {
		if f == name {
			return true
		}
	}
	return false
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
