package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli/v2"

	"songrate/pkg/models"
)

func roundsCommand() *cli.Command {
	return &cli.Command{
		Name:    "rounds",
		Aliases: []string{"r"},
		Usage:   "List, create, submit to and rate rounds",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Upcoming rounds and past rounds you took part in",
				Action: listRounds,
			},
			{
				Name:      "show",
				Usage:     "Show one round as you can see it right now",
				ArgsUsage: "<round-id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print the raw response"}},
				Action:    showRound,
			},
			{
				Name:  "create",
				Usage: "Create a round (admins only)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.IntFlag{Name: "count", Value: 1, Usage: "songs per submitter"},
					&cli.StringFlag{Name: "date", Required: true, Usage: "submission deadline, RFC3339 or a duration from now like 48h"},
					&cli.StringFlag{Name: "end-date", Required: true, Usage: "rating deadline, RFC3339 or a duration from now"},
					&cli.StringFlag{Name: "playlist-id"},
					&cli.StringFlag{Name: "playlist-url"},
				},
				Action: createRound,
			},
			{
				Name:      "submit",
				Usage:     "Submit your track links, replacing any earlier submission",
				ArgsUsage: "<round-id> <track-link>...",
				Action:    submitSongs,
			},
			{
				Name:      "rate",
				Usage:     "Rate tracks from 1 to 10",
				ArgsUsage: "<round-id> <track>=<value>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "later", Usage: "save without marking yourself finished"},
				},
				Action: submitRatings,
			},
			{
				Name:      "playlist",
				Usage:     "Attach a playlist to a round (admins only)",
				ArgsUsage: "<round-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id"},
					&cli.StringFlag{Name: "url"},
				},
				Action: setPlaylist,
			},
			{
				Name:      "results",
				Usage:     "Show results of a complete round",
				ArgsUsage: "<round-id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print the raw response"}},
				Action:    showResults,
			},
		},
	}
}

// call runs one authenticated request behind a spinner.
func call(c *cli.Context, title, method, path string, in, out any) error {
	api, err := authedClient(c)
	if err != nil {
		return err
	}
	send := func(ctx context.Context) error {
		return api.call(ctx, method, path, in, out)
	}
	return spinner.New().Title(title).Context(c.Context).ActionWithErr(send).Run()
}

func roundArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", fmt.Errorf("usage: rate rounds %s %s", c.Command.Name, c.Command.ArgsUsage)
	}
	return url.PathEscape(id), nil
}

func listRounds(c *cli.Context) error {
	var resp struct {
		Items []models.RoundSummary `json:"items"`
	}
	if err := call(c, "Loading rounds...", http.MethodGet, "/rates", nil, &resp); err != nil {
		return err
	}
	if len(resp.Items) == 0 {
		fmt.Println("no rounds")
		return nil
	}
	writeSummaries(os.Stdout, resp.Items)
	return nil
}

func writeSummaries(w io.Writer, items []models.RoundSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTAGE\tSUBMIT BY\tRATE BY\tSTATUS")
	for _, s := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Title, s.Stage, when(s.SubmissionDeadline), when(s.RatingDeadline), s.Waiting)
	}
	_ = tw.Flush()
}

func when(t time.Time) string {
	if t.IsZero() {
		return "no deadline"
	}
	return humanize.Time(t)
}

func showRound(c *cli.Context) error {
	id, err := roundArg(c)
	if err != nil {
		return err
	}
	var view models.RoundView
	if err := call(c, "Loading round...", http.MethodGet, "/rates/"+id, nil, &view); err != nil {
		return err
	}
	if c.Bool("json") {
		printJSON(view)
		return nil
	}
	writeRoundView(os.Stdout, &view)
	return nil
}

func writeRoundView(w io.Writer, v *models.RoundView) {
	fmt.Fprintf(w, "%s [%s]\n", v.Title, v.Stage)
	fmt.Fprintf(w, "  submissions close %s, rating closes %s\n", when(v.SubmissionDeadline), when(v.RatingDeadline))
	if v.Playlist.URL != "" {
		fmt.Fprintf(w, "  playlist: %s\n", v.Playlist.URL)
	}
	if len(v.PendingRaters) > 0 {
		fmt.Fprintf(w, "  still rating: %v\n", v.PendingRaters)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACK\tNAME\tBY\tYOUR RATING")
	for _, s := range v.Songs {
		name := s.TrackName
		if s.Artist != "" {
			name += " - " + s.Artist
		}
		rating := "-"
		if s.Rating > 0 {
			rating = humanize.FtoaWithDigits(s.Rating, 1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.TrackID, name, s.SubmittedBy, rating)
	}
	_ = tw.Flush()

	if v.Results != nil {
		fmt.Fprintln(w)
		writeResults(w, v.Results)
	}
}

func createRound(c *cli.Context) error {
	now := time.Now()
	date, err := parseWhen(c.String("date"), now)
	if err != nil {
		return fmt.Errorf("--date: %w", err)
	}
	end, err := parseWhen(c.String("end-date"), now)
	if err != nil {
		return fmt.Errorf("--end-date: %w", err)
	}
	body := map[string]any{
		"title":    c.String("title"),
		"count":    c.Int("count"),
		"date":     date,
		"end_date": end,
		"playlist": models.Playlist{ID: c.String("playlist-id"), URL: c.String("playlist-url")},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := call(c, "Creating round...", http.MethodPost, "/rates", body, &out); err != nil {
		return err
	}
	fmt.Printf("created %s (submissions close %s)\n", out.ID, when(date))
	return nil
}

// parseWhen accepts an RFC3339 timestamp or a duration relative to now.
func parseWhen(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC3339 time or duration, got %q", s)
	}
	return now.Add(d).Truncate(time.Second), nil
}

func submitSongs(c *cli.Context) error {
	id, err := roundArg(c)
	if err != nil {
		return err
	}
	links := c.Args().Tail()
	if len(links) == 0 {
		return fmt.Errorf("usage: rate rounds submit %s", c.Command.ArgsUsage)
	}
	var out struct {
		Songs []models.Song `json:"songs"`
	}
	if err := call(c, "Submitting...", http.MethodPost, "/rates/"+id, map[string]any{"songs": links}, &out); err != nil {
		return err
	}
	fmt.Printf("submitted %s\n", english.Plural(len(out.Songs), "song", "songs"))
	for _, s := range out.Songs {
		if s.TrackName != "" {
			fmt.Printf("  %s - %s\n", s.TrackName, s.Artist)
		} else {
			fmt.Printf("  %s\n", s.TrackID)
		}
	}
	return nil
}

func submitRatings(c *cli.Context) error {
	id, err := roundArg(c)
	if err != nil {
		return err
	}
	rates, err := parseRatings(c.Args().Tail())
	if err != nil {
		return err
	}
	body := map[string]any{"rates": rates, "save_for_later": c.Bool("later")}
	if err := call(c, "Saving ratings...", http.MethodPut, "/rates/"+id, body, nil); err != nil {
		return err
	}
	if c.Bool("later") {
		fmt.Printf("saved %s for later\n", english.Plural(len(rates), "rating", "ratings"))
	} else {
		fmt.Printf("saved %s, you are done rating\n", english.Plural(len(rates), "rating", "ratings"))
	}
	return nil
}

func setPlaylist(c *cli.Context) error {
	id, err := roundArg(c)
	if err != nil {
		return err
	}
	p := models.Playlist{ID: c.String("id"), URL: c.String("url")}
	if p.ID == "" && p.URL == "" {
		return fmt.Errorf("--id or --url required")
	}
	if err := call(c, "Updating playlist...", http.MethodPut, "/rates/"+id+"/playlist", p, nil); err != nil {
		return err
	}
	fmt.Println("playlist updated")
	return nil
}

func showResults(c *cli.Context) error {
	id, err := roundArg(c)
	if err != nil {
		return err
	}
	var res models.Results
	if err := call(c, "Loading results...", http.MethodGet, "/rates/"+id+"/results", nil, &res); err != nil {
		return err
	}
	if c.Bool("json") {
		printJSON(res)
		return nil
	}
	writeResults(os.Stdout, &res)
	return nil
}

func writeResults(w io.Writer, res *models.Results) {
	fmt.Fprintf(w, "Results for %s\n", res.Title)
	if res.Best != nil {
		fmt.Fprintf(w, "  best:  %s (%s) by %s\n", songLabel(*res.Best), res.Best.AverageDisplay, res.Best.SubmittedBy)
	}
	if res.Worst != nil {
		fmt.Fprintf(w, "  worst: %s (%s) by %s\n", songLabel(*res.Worst), res.Worst.AverageDisplay, res.Worst.SubmittedBy)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nRANK\tSUBMITTER\tAVERAGE")
	for _, r := range res.Rankings {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", humanize.Ordinal(r.Rank), r.Submitter, r.AverageDisplay)
	}
	fmt.Fprintln(tw, "\nSONG\tBY\tAVERAGE\tVOTES")
	for _, s := range res.Songs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", songLabel(s), s.SubmittedBy, s.AverageDisplay, len(s.Ratings))
	}
	_ = tw.Flush()
}

func songLabel(s models.SongResult) string {
	if s.TrackName == "" {
		return s.TrackID
	}
	if s.Artist == "" {
		return s.TrackName
	}
	return s.TrackName + " - " + s.Artist
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("json: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
