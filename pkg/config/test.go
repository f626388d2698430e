package config

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = ":memory:"
	cfg.JWTSecret = "test-secret"
	cfg.ServerHost = "127.0.0.1"
	// Let the OS assign a port so parallel test runs don't collide.
	cfg.ServerPort = 0
}
