// Package cmd provides CLI commands for the trial services.
//
// # Commands
//
// triald: Runs the trial coordinator service, optionally with an embedded
// decryption oracle and Postgres-backed event persistence.
//
//	go run ./cmd/triald --addr=:8080 --admin-token=admin:secret
//	go run ./cmd/triald --config=trial.yaml
//
// # Configuration
//
// All commands support YAML configuration files via the --config flag.
// Command-line flags override config file values.
//
// Example config for triald:
//
//	http_addr: ":8080"
//	admin_token: "admin:secret"
//	coordinator: "coordinator"
//	trial:
//	  phase_duration: 720h
//	  designated_week: 4
//	  min_oracle_signatures: 1
//	  significance_threshold: 10
//	oracle:
//	  embedded: true
//	  signing_key: ""
//	  trusted_keys: []
package cmd
