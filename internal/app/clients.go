package app

import (
	"fmt"
	"os"

	"github.com/ellyeware/idiombot/internal/clients/fetch"
	"github.com/ellyeware/idiombot/internal/clients/gcp"
	"github.com/ellyeware/idiombot/internal/clients/redis"
	"github.com/ellyeware/idiombot/internal/clients/telegram"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type Clients struct {
	Images  gcp.BucketService
	Vision  gcp.Vision
	Fetcher fetch.Fetcher
	Relay   telegram.Relay
	Limiter redis.RateLimiter
}

// wireClients builds the external clients. Telegram and redis are optional;
// the bot runs without relaying or throttling when they are not configured.
func wireClients(log *logger.Logger) (Clients, error) {
	images, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}
	vision, err := gcp.NewVision(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init vision client: %w", err)
	}

	var relay telegram.Relay
	if os.Getenv("TELEGRAM_BOT_TOKEN") != "" {
		relay, err = telegram.NewRelay(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init telegram relay: %w", err)
		}
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN unset, telegram relaying disabled")
	}

	var limiter redis.RateLimiter
	if os.Getenv("REDIS_ADDR") != "" {
		limiter, err = redis.NewRateLimiter(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init rate limiter: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR unset, upload throttling disabled")
	}

	return Clients{
		Images:  images,
		Vision:  vision,
		Fetcher: fetch.NewFetcher(log),
		Relay:   relay,
		Limiter: limiter,
	}, nil
}
