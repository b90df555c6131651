package main

import "testing"

func TestNormalizeDatabaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"postgresql://user:pw@db:5432/finance",
			"postgres://user:pw@db:5432/finance?sslmode=disable",
		},
		{
			"postgres://user:pw@db:5432/finance?application_name=analytics",
			"postgres://user:pw@db:5432/finance?application_name=analytics&sslmode=disable",
		},
		{
			"postgres://user:pw@db:5432/finance?sslmode=require",
			"postgres://user:pw@db:5432/finance?sslmode=require",
		},
	}

	for _, tt := range tests {
		if got := normalizeDatabaseURL(tt.in); got != tt.want {
			t.Errorf("normalizeDatabaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		in   string
		addr string
		db   int
	}{
		{"redis:6379", "redis:6379", 0},
		{"redis://localhost:6380/2", "localhost:6380", 2},
	}

	for _, tt := range tests {
		opt := redisOptions(tt.in)
		if opt.Addr != tt.addr || opt.DB != tt.db {
			t.Errorf("redisOptions(%q) = %s/%d, want %s/%d", tt.in, opt.Addr, opt.DB, tt.addr, tt.db)
		}
	}
}
