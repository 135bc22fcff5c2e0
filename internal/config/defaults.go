package config

import "time"

var defaults = map[string]any{
	"env":       EnvProduction,
	"log_level": "info",
	"listen":    ":8080",
	"base_url":  "",

	"allowed_networks": "",

	"cookie_secret":         "",
	"encryption_master_key": "",
	"cleanup_secret":        "",

	"admin.email":    "",
	"admin.password": "",

	"storage.type":          "sqlite",
	"storage.sqlite.path":   "./data/storage.db",
	"storage.postgres.dsn":  "",
	"storage.postgres.pool": 10,

	"blob.path": "./data/blobs",

	"ratelimit.store":          "memory",
	"ratelimit.attempts":       5,
	"ratelimit.window":         time.Minute,
	"ratelimit.redis.addr":     "localhost:6379",
	"ratelimit.redis.password": "",
	"ratelimit.redis.db":       0,

	"email.enabled":  false,
	"email.host":     "host.docker.internal",
	"email.port":     25,
	"email.username": "",
	"email.password": "",
	"email.from":     "noreply@example.com",

	"push.enabled":           true,
	"push.timeout":           10 * time.Second,
	"push.vapid_public_key":  "",
	"push.vapid_private_key": "",
	"push.subject":           "",

	"retention.audit_logs":        90 * 24 * time.Hour,
	"retention.recovery_requests": 30 * 24 * time.Hour,
	"retention.interval":          24 * time.Hour,
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
