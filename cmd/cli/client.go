package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"songrate/internal/rounds"
)

var errNotLoggedIn = errors.New("not logged in, run `rate auth login`")

// session is what login leaves on disk.
type session struct {
	Token     string `json:"token"`
	Username  string `json:"username,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func defaultSessionPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "songrate", "session.json")
	}
	return ".songrate-session.json"
}

func loadSession(path string) (*session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}
	if strings.TrimSpace(s.Token) == "" {
		return nil, errNotLoggedIn
	}
	return &s, nil
}

func (s *session) save(path string) error {
	if s.Token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func forgetSession(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// apiClient talks JSON to the HTTP API. Error bodies of the form
// {"error": ..., "expected": ...} become Go errors.
type apiClient struct {
	base  string
	token string
	hc    *http.Client
}

func (a *apiClient) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func apiError(status int, data []byte) error {
	var body struct {
		Error    string `json:"error"`
		Expected string `json:"expected"`
	}
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		return fmt.Errorf("%s: %s", http.StatusText(status), strings.TrimSpace(string(data)))
	}
	if body.Expected != "" {
		return fmt.Errorf("%s (expected %s)", body.Error, body.Expected)
	}
	return errors.New(body.Error)
}

func websocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid api url %q", base)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: path}).String(), nil
}

// parseRatings reads "track=value" pairs. The track part may be a bare
// id or a full track link.
func parseRatings(args []string) ([]rounds.RatingInput, error) {
	out := make([]rounds.RatingInput, 0, len(args))
	for _, arg := range args {
		i := strings.LastIndex(arg, "=")
		if i <= 0 || i == len(arg)-1 {
			return nil, fmt.Errorf("expected track=value, got %q", arg)
		}
		v, err := strconv.ParseFloat(arg[i+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("rating for %s: %w", arg[:i], err)
		}
		if !rounds.ValidRating(v) {
			return nil, fmt.Errorf("rating for %s must be 1 to 10 in steps of 0.1", arg[:i])
		}
		out = append(out, rounds.RatingInput{TrackID: arg[:i], Value: v})
	}
	return out, nil
}
