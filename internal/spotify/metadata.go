package spotify

import (
	"context"
	"fmt"
	"strings"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

type TrackInfo struct {
	Name   string
	Artist string
}

// trackGetter is the part of *spotify.Client the lookup needs.
type trackGetter interface {
	GetTrack(ctx context.Context, id spotifyapi.ID, opts ...spotifyapi.RequestOption) (*spotifyapi.FullTrack, error)
}

// Client looks up display metadata for track ids.
type Client struct {
	api trackGetter
}

// NewClient builds a Web API client authenticated with the client-credentials
// flow. Tokens refresh automatically through the oauth2 transport.
func NewClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("spotify client id and secret required")
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := cfg.Token(ctx); err != nil {
		return nil, fmt.Errorf("spotify token: %w", err)
	}
	return &Client{api: spotifyapi.New(cfg.Client(ctx))}, nil
}

// Lookup fetches name and artist for each id. Ids that fail to resolve are
// left out of the result; the first error is returned alongside whatever
// was found.
func (c *Client) Lookup(ctx context.Context, ids []string) (map[string]TrackInfo, error) {
	out := make(map[string]TrackInfo, len(ids))
	var firstErr error
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		track, err := c.api.GetTrack(ctx, spotifyapi.ID(id))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("get track %s: %w", id, err)
			}
			continue
		}
		names := make([]string, 0, len(track.Artists))
		for _, a := range track.Artists {
			names = append(names, a.Name)
		}
		out[id] = TrackInfo{Name: track.Name, Artist: strings.Join(names, ", ")}
	}
	return out, firstErr
}
