package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/huh/spinner"
	"github.com/urfave/cli/v2"
)

type sessionResp struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"is_admin"`
	} `json:"user"`
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Log in, register or log out",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"RATE_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					return startSession(c, "/auth/register", map[string]string{
						"username": c.String("username"),
						"email":    c.String("email"),
						"password": c.String("password"),
					})
				},
			},
			{
				Name:  "login",
				Usage: "Log in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"RATE_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					return startSession(c, "/auth/login", map[string]string{
						"email":    c.String("email"),
						"password": c.String("password"),
					})
				},
			},
			{
				Name:   "logout",
				Usage:  "Revoke the current session and forget it",
				Action: logout,
			},
			{
				Name:  "whoami",
				Usage: "Show the logged in user",
				Action: func(c *cli.Context) error {
					api, err := authedClient(c)
					if err != nil {
						return err
					}
					var me map[string]any
					if err := api.call(c.Context, http.MethodGet, "/users/me", nil, &me); err != nil {
						return err
					}
					printJSON(me)
					return nil
				},
			},
		},
	}
}

func startSession(c *cli.Context, path string, body map[string]string) error {
	api := newClient(c, "")
	var resp sessionResp
	send := func(ctx context.Context) error {
		return api.call(ctx, http.MethodPost, path, body, &resp)
	}
	if err := spinner.New().Title("Contacting server...").Context(c.Context).ActionWithErr(send).Run(); err != nil {
		return err
	}

	s := &session{Token: resp.Token, Username: resp.User.Username, ExpiresAt: resp.ExpiresAt}
	if err := s.save(c.String("session")); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	role := ""
	if resp.User.IsAdmin {
		role = " (admin)"
	}
	fmt.Printf("logged in as %s%s\n", resp.User.Username, role)
	return nil
}

func logout(c *cli.Context) error {
	path := c.String("session")
	if api, err := authedClient(c); err == nil {
		if err := api.call(c.Context, http.MethodPost, "/auth/logout", nil, nil); err != nil {
			fmt.Printf("server logout failed: %v\n", err)
		}
	}
	if err := forgetSession(path); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}
