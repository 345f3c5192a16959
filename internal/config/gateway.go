package config

import "time"

const (
	// Transport
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096
	SendBufferSize = 256

	// Store round-trips for message and history frames
	StoreWorkers   = 8
	StoreQueueSize = 256

	// Backlog
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100

	// Tokens
	DefaultTokenTTL = 72 * time.Hour
)
