package config

// Cli holds the flags cmd/transcodectl binds through cobra/viper.
type Cli struct {
	ListenAddr  string
	MetricsAddr string
	LogLevel    string
}
