package config

import "time"

// DefaultScoreTable holds pertinence scores for the default background corpus (query 0).
const DefaultScoreTable = "VsChildAsthmaScore"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.Driver == "sqlite3" && cfg.Database.Path == "" {
		cfg.Database.Path = "./data/term_miner.sqlite3"
	}
	if len(cfg.Database.ScoreTables) == 0 {
		cfg.Database.ScoreTables = map[int]string{0: DefaultScoreTable}
	}
	if cfg.Dashboard.Title == "" {
		cfg.Dashboard.Title = "Explore MetaMap Annotations (EMMA)"
	}
	// Foreground 0 would equal the background corpus; the first foreground query is 1.
	if cfg.Dashboard.DefaultForeground == 0 {
		cfg.Dashboard.DefaultForeground = 1
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
