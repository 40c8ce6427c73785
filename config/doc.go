// Package config loads taskgraph configuration with viper.
//
// Sources are layered: a YAML file (explicit, or ./taskgraph.yml,
// ./config/taskgraph.yml, ~/.config/taskgraph/config.yml), then a .env file
// loaded with godotenv, then TASKGRAPH_-prefixed environment variables.
// Command-line flags are applied by the caller on top of the result.
package config
