package rounds

import (
	"strconv"
	"strings"
	"time"

	"songrate/pkg/models"
)

const (
	completeMessage = "Rate complete!"
	youName         = "You"
	notYouName      = "Not you"
)

// FormatScore renders v with at most two decimals and no trailing zeros,
// e.g. 8 -> "8", 7.5 -> "7.5", 6.666 -> "6.67".
func FormatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Join lists names in prose: "A", "A and B", "A, B, and C".
func Join(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	last := len(names) - 1
	return strings.Join(names[:last], ", ") + ", and " + names[last]
}

// WaitingMessage is the status line shown for a round in the listing.
func WaitingMessage(r *models.Round, caller string, now time.Time) string {
	if ResolveStage(r, now) == models.StageComplete {
		return completeMessage
	}
	if len(r.FinishedRaters) == 0 {
		return "Waiting on Everyone"
	}

	var others []string
	for _, p := range PendingRaters(r) {
		if p != caller {
			others = append(others, p)
		}
	}

	switch {
	case HasFinished(r, caller):
		return "Waiting on " + Join(others)
	case len(others) > 0:
		return "Waiting on " + Join(append(others, youName))
	default:
		return "Waiting on " + youName
	}
}
