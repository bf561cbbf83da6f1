package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/cfpl/pkg/api"
	grpcapi "github.com/lemonberrylabs/cfpl/pkg/api/grpc"
	"github.com/lemonberrylabs/cfpl/pkg/config"
	"github.com/lemonberrylabs/cfpl/pkg/runner"
	"github.com/lemonberrylabs/cfpl/pkg/store"
	"github.com/lemonberrylabs/cfpl/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host CFPL programs over REST and gRPC",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	cmd.Flags().String("config", "", "YAML config file (env CFPL_CONFIG)")
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	cmd.Flags().String("project", "", "Project ID for API paths (default my-project, env PROJECT)")
	cmd.Flags().String("location", "", "Location for API paths (default us-central1, env LOCATION)")
	cmd.Flags().String("programs-dir", "", "Directory of .cfpl files to deploy at startup (env PROGRAMS_DIR)")
	cmd.Flags().Duration("run-timeout", 0, "Per-run timeout (default 30s, env RUN_TIMEOUT)")
	cmd.Flags().Int("max-steps", 0, "Per-run statement limit, 0 for none (env MAX_STEPS)")
	cmd.Flags().Bool("request-log", false, "Log every HTTP request")
	return cmd
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	path := envOrDefault("CFPL_CONFIG", "")
	if v, _ := cmd.Flags().GetString("config"); v != "" {
		path = v
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	cfg, err := config.FromEnv(cfg)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Port = v
	}
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		cfg.GRPCPort = v
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetString("project"); v != "" {
		cfg.Project = v
	}
	if v, _ := cmd.Flags().GetString("location"); v != "" {
		cfg.Location = v
	}
	if v, _ := cmd.Flags().GetString("programs-dir"); v != "" {
		cfg.ProgramsDir = v
	}
	if v, _ := cmd.Flags().GetDuration("run-timeout"); v != 0 {
		cfg.RunTimeout = v
	}
	if v, _ := cmd.Flags().GetInt("max-steps"); v != 0 {
		cfg.MaxSteps = v
	}
	if v, _ := cmd.Flags().GetBool("request-log"); v {
		cfg.RequestLog = true
	}

	return cfg, cfg.Validate()
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	s := store.New()
	r := runner.New(s, cfg.RunnerOptions())
	server := api.New(s, r, api.Config{RequestLog: cfg.RequestLog})

	if cfg.ProgramsDir != "" {
		log.Printf("Loading programs directory: %s", cfg.ProgramsDir)
		if err := server.LoadDir(cfg.ProgramsDir, cfg.Project, cfg.Location); err != nil {
			log.Printf("Warning: failed to load programs directory: %v", err)
		}
	}

	web.New(s, cfg.Project, cfg.Location).Register(server.App())

	grpcServer := grpcapi.New(s, r)
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr())
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("CFPL host listening on %s (project=%s, location=%s, run timeout=%s)",
		cfg.Addr(), cfg.Project, cfg.Location, cfg.RunTimeout)
	err = server.Listen(cfg.Addr())
	r.Wait()
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
