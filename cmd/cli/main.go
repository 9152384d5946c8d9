package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "rate",
		Usage: "Submit Spotify tracks into rounds, rate them and see who picked best.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Value:   "http://localhost:8080",
				Usage:   "HTTP API base URL",
				EnvVars: []string{"RATE_API_URL"},
			},
			&cli.StringFlag{
				Name:    "session",
				Value:   defaultSessionPath(),
				Usage:   "where the login session is stored",
				EnvVars: []string{"RATE_SESSION_FILE"},
			},
		},
		Commands: []*cli.Command{
			authCommand(),
			roundsCommand(),
			watchCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func baseURL(c *cli.Context) string {
	return strings.TrimRight(c.String("api"), "/")
}

func newClient(c *cli.Context, token string) *apiClient {
	return &apiClient{base: baseURL(c), token: token, hc: &http.Client{Timeout: 15 * time.Second}}
}

// authedClient loads the saved session for commands that need a login.
func authedClient(c *cli.Context) (*apiClient, error) {
	s, err := loadSession(c.String("session"))
	if err != nil {
		return nil, err
	}
	return newClient(c, s.Token), nil
}
