package cmd

import "github.com/livepeer/transcode-engine/config"

func versionString() string {
	if config.Version == "" {
		return "dev"
	}
	return config.Version
}
