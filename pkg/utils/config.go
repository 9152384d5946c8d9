package utils

import (
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const logtag = "[config]"

// LoadEnv loads variables from the file named by -config, or from ./.env
// when the flag is absent. Variables already set in the environment win.
func LoadEnv() {
	path := envFileFlag()
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			log.Fatalf("%s err loading env from file : %v", logtag, err)
		}
		log.Printf("%s using env from : %s", logtag, path)
		return
	}
	if err := godotenv.Load(); err == nil {
		log.Printf("%s using env from .env", logtag)
	}
}

// envFileFlag reads -config without claiming the global flag set for
// binaries that parse their own flags.
func envFileFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "path env file")
	var args []string
	for i := 1; i < len(os.Args); i++ {
		a := os.Args[i]
		if a == "-config" || a == "--config" {
			if i+1 < len(os.Args) {
				args = append(args, a, os.Args[i+1])
			}
			i++
			continue
		}
		if strings.HasPrefix(a, "-config=") || strings.HasPrefix(a, "--config=") {
			args = append(args, a)
		}
	}
	_ = fs.Parse(args)
	return *path
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("%s bad %s=%q, using %d", logtag, key, v, def)
		return def
	}
	return n
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
	AdminEmails []string
}

func LoadAuthConfig() AuthConfig {
	return AuthConfig{
		// dev default (change for demo / production)
		JWTSecret:   getenv("RATE_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getenv("RATE_JWT_ISSUER", "songrate"),
		JWTDuration: time.Duration(getenvInt("RATE_JWT_TTL_HOURS", 24)) * time.Hour,
		AdminEmails: splitList(os.Getenv("RATE_ADMIN_EMAILS")),
	}
}

// IsAdmin reports whether email is one of the configured admin emails.
func (c AuthConfig) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

type ServerConfig struct {
	HTTPAddr string
	SyncAddr string
	// WriteRPS and WriteBurst bound write requests per identity.
	WriteRPS   float64
	WriteBurst int
}

func LoadServerConfig() ServerConfig {
	rps, err := strconv.ParseFloat(getenv("RATE_WRITE_RPS", "2"), 64)
	if err != nil || rps <= 0 {
		rps = 2
	}
	return ServerConfig{
		HTTPAddr:   getenv("RATE_HTTP_ADDR", ":8080"),
		SyncAddr:   getenv("RATE_SYNC_ADDR", ":7070"),
		WriteRPS:   rps,
		WriteBurst: getenvInt("RATE_WRITE_BURST", 5),
	}
}

type GrpcConfig struct {
	Addr string
	// TrustUserHeader accepts x-rate-user metadata without a bearer token.
	TrustUserHeader bool
}

func LoadGrpcConfig() GrpcConfig {
	return GrpcConfig{
		Addr:            getenv("RATE_GRPC_ADDR", ":9090"),
		TrustUserHeader: os.Getenv("RATE_GRPC_TRUST_USER") == "1",
	}
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled is false when no address is configured; results are then
// computed on every request.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

func LoadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     os.Getenv("RATE_REDIS_ADDR"),
		Password: os.Getenv("RATE_REDIS_PASSWORD"),
		DB:       getenvInt("RATE_REDIS_DB", 0),
		TTL:      time.Duration(getenvInt("RATE_RESULTS_TTL_MINUTES", 60)) * time.Minute,
	}
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
}

func (c SpotifyConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

func LoadSpotifyConfig() SpotifyConfig {
	return SpotifyConfig{
		ClientID:     os.Getenv("RATE_SPOTIFY_CLIENT_ID"),
		ClientSecret: os.Getenv("RATE_SPOTIFY_CLIENT_SECRET"),
	}
}

type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// FrontendURL receives the token after a successful login.
	FrontendURL string
}

func (c DiscordConfig) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

func LoadDiscordConfig() DiscordConfig {
	return DiscordConfig{
		ClientID:     os.Getenv("RATE_DISCORD_CLIENT_ID"),
		ClientSecret: os.Getenv("RATE_DISCORD_CLIENT_SECRET"),
		RedirectURL:  getenv("RATE_DISCORD_REDIRECT_URL", "http://localhost:8080/auth/discord/callback"),
		FrontendURL:  os.Getenv("RATE_FRONTEND_URL"),
	}
}
