package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	stateCookie        = "rate_oauth_state"
	discordUserInfoURL = "https://discord.com/api/users/@me"
)

var DiscordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DiscordHandler signs users in with Discord and issues the same session
// tokens as local login.
type DiscordHandler struct {
	Repo        *Repo
	Tokens      TokenService
	OAuth       *oauth2.Config
	UserInfoURL string
	// FrontendURL, when set, receives the session token in the URL fragment
	// instead of a JSON body.
	FrontendURL string
}

func NewDiscordHandler(repo *Repo, tokens TokenService, clientID, clientSecret, redirectURL, frontendURL string) *DiscordHandler {
	return &DiscordHandler{
		Repo:   repo,
		Tokens: tokens,
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     DiscordEndpoint,
		},
		UserInfoURL: discordUserInfoURL,
		FrontendURL: frontendURL,
	}
}

func (h *DiscordHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/discord/login", h.login)
	rg.GET("/discord/callback", h.callback)
}

func (h *DiscordHandler) login(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.OAuth.AuthCodeURL(state))
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
}

func (h *DiscordHandler) callback(c *gin.Context) {
	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || c.Query("state") != want {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	ctx := c.Request.Context()
	tok, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		log.Printf("[auth] discord exchange: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "discord login failed"})
		return
	}

	du, err := h.fetchUser(ctx, tok)
	if err != nil {
		log.Printf("[auth] discord user: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "discord user lookup failed"})
		return
	}

	name := du.GlobalName
	if name == "" {
		name = du.Username
	}
	u, err := h.Repo.UpsertExternal(ctx, ProviderDiscord, du.ID, name, du.Email)
	if err != nil {
		log.Printf("[auth] upsert discord user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	sess, err := newSession(h.Tokens, u)
	if err != nil {
		log.Printf("[auth] sign token for %s: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	if h.FrontendURL != "" {
		c.Redirect(http.StatusFound, h.FrontendURL+"#token="+url.QueryEscape(sess.Token))
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *DiscordHandler) fetchUser(ctx context.Context, tok *oauth2.Token) (*discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.OAuth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord status %d", resp.StatusCode)
	}
	var du discordUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return nil, fmt.Errorf("decode discord user: %w", err)
	}
	if du.ID == "" {
		return nil, fmt.Errorf("discord user without id")
	}
	return &du, nil
}
