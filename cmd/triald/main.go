// Command triald runs the clinical trial coordinator service.
//
// # Configuration File
//
// Create a YAML file with service settings:
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
//	  signing_key: ""      # Hex-encoded Ed25519, generates if empty
//	  trusted_keys: []     # Hex-encoded keys of external oracles
//	postgres:
//	  host: "localhost"
//	  port: 5432
//	  user: "trial"
//	  password: "trial"
//	  database: "trial"
//
// # Endpoints
//
// Public (no auth):
//   - POST /api/enroll - Participant enrollment
//   - POST /api/measurements - Weekly measurement submission
//   - POST /api/phase/transition - Timer-gated phase advance
//   - POST /api/oracle/results - Signed oracle callback
//   - GET /api/status, /api/phase, /api/patients/{identity},
//     /api/results/{phase}, /api/request, /api/events
//
// Admin (basic auth when admin_token set):
//   - POST /admin/terminate - Emergency termination
//
// # Usage
//
//	go run ./cmd/triald --config=trial.yaml
//	go run ./cmd/triald --addr=:8080 --admin-token="admin:secret"
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/cmd/common"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/oracle"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/server"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/trial"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		addr          = flag.String("addr", "", "HTTP listen address")
		adminToken    = flag.String("admin-token", "", "Basic auth token for admin operations (user:pass)")
		coordinator   = flag.String("coordinator", "", "Identity allowed to terminate the trial")
		phaseDuration = flag.Duration("phase-duration", 0, "Fixed duration of each trial phase")
		debug         = flag.Bool("debug", false, "Enable debug logging")
		pprof         = flag.Bool("pprof", false, "Enable pprof debugging API")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	applyFlagOverrides(cfg, *addr, *adminToken, *coordinator, *phaseDuration, *pprof)

	if err := run(cfg, *debug); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func applyFlagOverrides(cfg *common.Config, addr, adminToken, coordinator string,
	phaseDuration time.Duration, pprof bool) {

	if addr != "" {
		cfg.HTTPAddr = addr
	}
	if adminToken != "" {
		cfg.AdminToken = adminToken
	}
	if coordinator != "" {
		cfg.Coordinator = coordinator
	}
	if phaseDuration != 0 {
		if cfg.Trial == nil {
			cfg.Trial = &common.TrialSettings{}
		}
		cfg.Trial.PhaseDuration = phaseDuration.String()
	}
	if pprof {
		cfg.EnablePprof = true
	}
}

func run(cfg *common.Config, debug bool) error {
	log := common.NewLogger(debug)

	trialConfig, err := cfg.Trial.ToTrialConfig()
	if err != nil {
		return err
	}

	oracleKeys, err := cfg.TrustedOracleKeys()
	if err != nil {
		return err
	}

	oracleKey, oraclePub, err := loadEmbeddedOracleKey(cfg)
	if err != nil {
		return err
	}
	if oraclePub != nil {
		oracleKeys = append(oracleKeys, oraclePub)
	}

	var sink trial.EventSink
	if cfg.Postgres != nil {
		pgSink, err := trial.NewPostgresSink(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres sink: %w", err)
		}
		defer pgSink.Close()
		sink = pgSink
		log.Info("Event persistence enabled", "database", cfg.Postgres.Database)
	}

	tr, err := trial.New(trial.Config{
		TrialConfig: trialConfig,
		Coordinator: trial.Identity(cfg.Coordinator),
		OracleKeys:  oracleKeys,
		Log:         log,
		Sink:        sink,
	})
	if err != nil {
		return err
	}

	adminUser, adminPass := splitAdminToken(cfg.AdminToken)
	if cfg.AdminToken == "" {
		log.Warn("No admin token configured, /admin/* routes are unprotected")
	}

	registrars := []server.RouteRegistrar{
		server.NewTrialHandler(tr, adminUser, adminPass),
	}

	if cfg.Oracle.Embedded {
		svc, err := oracle.New(oracle.Config{
			SigningKey: oracleKey,
			Resolver:   tr.Vault(),
			Log:        log,
		})
		if err != nil {
			return err
		}
		registrars = append(registrars, oracle.NewHandler(svc))
		log.Info("Embedded oracle enabled", "key", svc.PublicKey().String())
	}

	srv, err := server.New(&server.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, registrars...)
	if err != nil {
		return err
	}

	srv.RunInBackground()
	log.Info("Trial coordinator listening", "addr", cfg.HTTPAddr, "phase", tr.GetPhaseName())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down")
	srv.Shutdown()
	return nil
}

// loadEmbeddedOracleKey returns the embedded oracle's signing key and its
// public half, or nils when no embedded oracle is configured.
func loadEmbeddedOracleKey(cfg *common.Config) (crypto.PrivateKey, crypto.PublicKey, error) {
	if !cfg.Oracle.Embedded {
		return nil, nil, nil
	}
	priv, err := common.LoadOrGenerateSigningKey(cfg.Oracle.SigningKey)
	if err != nil {
		return nil, nil, err
	}
	pub, err := priv.PublicKey()
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// splitAdminToken splits a "user:pass" token.
func splitAdminToken(token string) (string, string) {
	if token == "" {
		return "", ""
	}
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
