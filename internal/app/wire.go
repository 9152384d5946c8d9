// Package app assembles the round service from environment configuration.
package app

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"

	"songrate/internal/auth"
	"songrate/internal/cache"
	"songrate/internal/metrics"
	"songrate/internal/rounds"
	"songrate/internal/spotify"
	"songrate/pkg/utils"
)

// NewRoundService wires the store, results cache and track lookup. pub and
// m may be nil.
func NewRoundService(ctx context.Context, db *sqlx.DB, pub rounds.Publisher, m *metrics.Metrics) *rounds.Service {
	opts := []rounds.Option{}

	redisCfg := utils.LoadRedisConfig()
	if redisCfg.Enabled() {
		client := cache.MustConnect(redisCfg.Addr, redisCfg.Password, redisCfg.DB)
		opts = append(opts, rounds.WithCache(cache.NewRedis(client, "rate", redisCfg.TTL)))
		log.Printf("[app] results cache: redis %s", redisCfg.Addr)
	} else {
		opts = append(opts, rounds.WithCache(cache.NewMemory()))
		log.Printf("[app] results cache: memory")
	}

	spCfg := utils.LoadSpotifyConfig()
	if spCfg.Enabled() {
		client, err := spotify.NewClient(ctx, spCfg.ClientID, spCfg.ClientSecret)
		if err != nil {
			log.Printf("[app] spotify metadata disabled: %v", err)
		} else {
			opts = append(opts, rounds.WithTrackLookup(client))
		}
	}

	if pub != nil {
		opts = append(opts, rounds.WithPublisher(pub))
	}
	if m != nil {
		opts = append(opts, rounds.WithMetrics(m))
	}
	return rounds.NewService(rounds.NewRepo(db), opts...)
}

func TokenService(cfg utils.AuthConfig) auth.TokenService {
	return auth.TokenService{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Duration: cfg.JWTDuration,
		IsAdmin:  cfg.IsAdmin,
	}
}
