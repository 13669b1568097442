package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                int
	LMAPIURL            string
	LMModel             string
	CaptureSidecarURL   string
	MeetingsFile        string
	MeetingsRetain      int
	DatabaseURL         string
	NatsURL             string
	ListenTimeout       time.Duration
	PhraseTimeLimit     time.Duration
	ErrorBackoff        time.Duration
	StopDrainTimeout    time.Duration
	DefaultTitle        string
	DefaultLanguage     string
	DefaultSpeakerCount int
	LogLevel            string
}

func Load() Config {
	return Config{
		Port:                envInt("MINUTED_PORT", 8900),
		LMAPIURL:            envStr("LM_API_URL", "http://localhost:1234/v1/chat/completions"),
		LMModel:             envStr("LM_MODEL", "local-model"),
		CaptureSidecarURL:   envStr("CAPTURE_SIDECAR_URL", "http://localhost:8901"),
		MeetingsFile:        envStr("MEETINGS_FILE", "meetings.json"),
		MeetingsRetain:      envInt("MEETINGS_RETAIN", 100),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		NatsURL:             envStr("NATS_URL", ""),
		ListenTimeout:       time.Duration(envInt("LISTEN_TIMEOUT_MS", 1000)) * time.Millisecond,
		PhraseTimeLimit:     time.Duration(envInt("PHRASE_TIME_LIMIT_MS", 8000)) * time.Millisecond,
		ErrorBackoff:        time.Duration(envInt("ERROR_BACKOFF_MS", 100)) * time.Millisecond,
		StopDrainTimeout:    time.Duration(envInt("STOP_DRAIN_TIMEOUT_MS", 2000)) * time.Millisecond,
		DefaultTitle:        envStr("DEFAULT_TITLE", "Team Discussion"),
		DefaultLanguage:     envStr("DEFAULT_LANGUAGE", "en-US"),
		DefaultSpeakerCount: envInt("DEFAULT_SPEAKER_COUNT", 2),
		LogLevel:            envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
