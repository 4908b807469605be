package config

import "time"

type Config struct {
	WebhookURL     string
	WebhookTimeout time.Duration
}
