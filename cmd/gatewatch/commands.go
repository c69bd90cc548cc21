package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/gatewatch"
	"github.com/loykin/gatewatch/internal/config"
	"github.com/loykin/gatewatch/internal/monitor"
	"github.com/loykin/gatewatch/pkg/client"
)

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "gatewatch",
		Short: "Supervisory monitor and recovery agent for a single gateway service",
		Long: "gatewatch polls one long-running gateway service for liveness and quality\n" +
			"signals, detects degradation before it becomes an outage, attempts automated\n" +
			"recovery with increasing aggressiveness, and notifies an operator through\n" +
			"rate-limited alerts.",
		SilenceUsage: true,
	}
	root.AddCommand(newWatchCmd(), newCheckCmd(), newStatusCmd(), newVersionCmd())
	return root
}

func newWatchCmd() *cobra.Command {
	var f WatchFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the monitor loop until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(f)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "gatewatch.toml", "agent config file")
	cmd.Flags().BoolVar(&f.Foreground, "foreground", false, "log to stderr as well as the log file")
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&f.PIDFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "daemon stdout/stderr destination")
	return cmd
}

func runWatch(f WatchFlags) error {
	cfg, err := loadConfig(f.ConfigPath)
	if err != nil {
		return err
	}
	if f.Daemonize {
		if err := daemonize(f.PIDFile, f.LogFile); err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		defer func() { _ = removePidFile(f.PIDFile) }()
	}

	agent, err := gatewatch.New(cfg, gatewatch.Options{Foreground: f.Foreground})
	if err != nil {
		return err
	}
	if err := agent.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return agent.Run(ctx)
}

func newCheckCmd() *cobra.Command {
	var f CheckFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the probe battery once and print the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f.ConfigPath)
			if err != nil {
				return err
			}
			agent, err := gatewatch.New(cfg, gatewatch.Options{Foreground: true, Quiet: true})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			snap := agent.CheckOnce(ctx)
			return printJSON(cmd, snap)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "gatewatch.toml", "agent config file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var f StatusFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the latest published snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.APIUrl != "" {
				c := client.New(client.Config{
					BaseURL:  f.APIUrl,
					Timeout:  f.APITimeout,
					Insecure: f.Insecure,
				})
				m, err := c.Status(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, m)
			}
			cfg, err := loadConfig(f.ConfigPath)
			if err != nil {
				return err
			}
			b, err := os.ReadFile(cfg.Paths.MetricsFile)
			if err != nil {
				return fmt.Errorf("no published metrics (is the agent running?): %w", err)
			}
			var m monitor.MetricsFile
			if err := json.Unmarshal(b, &m); err != nil {
				return fmt.Errorf("metrics file corrupt: %w", err)
			}
			return printJSON(cmd, m)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "gatewatch.toml", "agent config file")
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "query a remote agent's status server instead")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "remote query timeout")
	cmd.Flags().BoolVar(&f.Insecure, "insecure", false, "skip TLS verification for --api-url")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("gatewatch %s\n", version)
		},
	}
}

// loadConfig falls back to defaults when the config file is absent so the
// agent can run with zero configuration against a local gateway.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	return nil
}
