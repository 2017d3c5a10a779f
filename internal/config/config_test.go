package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name   string
		check  func(*Config) bool
		expect string
	}{
		{
			name:   "default host is 0.0.0.0",
			check:  func(c *Config) bool { return c.Host == "0.0.0.0" },
			expect: "0.0.0.0",
		},
		{
			name:   "default port is 8080",
			check:  func(c *Config) bool { return c.Port == 8080 },
			expect: "8080",
		},
		{
			name:   "default log level is info",
			check:  func(c *Config) bool { return c.LogLevel == "info" },
			expect: "info",
		},
		{
			name:   "default log format is json",
			check:  func(c *Config) bool { return c.LogFormat == "json" },
			expect: "json",
		},
		{
			name:   "default retention is 30 days",
			check:  func(c *Config) bool { return c.RetentionDays == 30 },
			expect: "30",
		},
		{
			name:   "default kv timeout is 100ms",
			check:  func(c *Config) bool { return c.KVTimeout.String() == "100ms" },
			expect: "100ms",
		},
		{
			name:   "listen addr format",
			check:  func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" },
			expect: "0.0.0.0:8080",
		},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("expected %s", tt.expect)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "short secret rejected",
			cfg:     Config{Secret: "too-short", RedisURL: "redis://x", DatabaseURL: "postgres://x"},
			wantErr: true,
		},
		{
			name:    "missing redis url rejected",
			cfg:     Config{Secret: fixedSecret(32), DatabaseURL: "postgres://x"},
			wantErr: true,
		},
		{
			name:    "32-byte secret is exactly the floor",
			cfg:     Config{Secret: fixedSecret(32), RedisURL: "redis://x", DatabaseURL: "postgres://x"},
			wantErr: false,
		},
		{
			name:    "31-byte secret is rejected",
			cfg:     Config{Secret: fixedSecret(31), RedisURL: "redis://x", DatabaseURL: "postgres://x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func fixedSecret(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
