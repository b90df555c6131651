package main

import (
	"testing"

	"finance-analytics-backend/internal/config"
	"finance-analytics-backend/internal/logging"
)

func TestLoggerConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want logging.Config
	}{
		{"production preset", config.Config{}, logging.Config{Level: "info", Format: "json"}},
		{"development preset", config.Config{LogDev: true}, logging.Config{Level: "debug", Format: "console", Development: true}},
		{"explicit level", config.Config{LogLevel: "warn"}, logging.Config{Level: "warn", Format: "json"}},
		{"development with json", config.Config{LogDev: true, LogFormat: "json"}, logging.Config{Level: "debug", Format: "json", Development: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if got := loggerConfig(&cfg); got != tt.want {
				t.Errorf("loggerConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
