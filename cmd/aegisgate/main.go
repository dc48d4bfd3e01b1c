package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aegisgate/aegisgate/internal/api"
	"github.com/aegisgate/aegisgate/internal/approval"
	"github.com/aegisgate/aegisgate/internal/audit"
	"github.com/aegisgate/aegisgate/internal/config"
	"github.com/aegisgate/aegisgate/internal/forwarder"
	"github.com/aegisgate/aegisgate/internal/gateway"
	"github.com/aegisgate/aegisgate/internal/policy"
	"github.com/aegisgate/aegisgate/internal/tracing"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aegisgate",
		Short: "Policy-mediated egress gateway for autonomous agents",
		Long:  "aegisgate evaluates every tool call an agent makes against a hot-reloadable\ndeclarative policy set, and suspends, denies, or forwards the call accordingly.",
	}

	var configFile string
	var addr string

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gateway's HTTP transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(configFile, addr)
		},
	}
	startCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file (default: ./aegisgate.yaml)")
	startCmd.Flags().StringVar(&addr, "addr", "", "override the listen address (default from config, e.g. :8080)")

	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy inspection commands",
	}

	var policyDir string
	policyValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every *.yaml/*.yml file in a policy directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyValidate(policyDir)
		},
	}
	policyValidateCmd.Flags().StringVarP(&policyDir, "dir", "d", "./policies", "policy directory to validate")

	var reloadAddr string
	policyReloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Check a running gateway is reachable; its watcher reloads policies on file change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyReload(reloadAddr)
		},
	}
	policyReloadCmd.Flags().StringVar(&reloadAddr, "addr", "http://localhost:8080", "base URL of the running gateway")

	policyCmd.AddCommand(policyValidateCmd, policyReloadCmd)

	var statusAddr string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print a running gateway's health and policy stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(statusAddr)
		},
	}
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "base URL of the running gateway")

	var mockAddr string
	mockCmd := &cobra.Command{
		Use:   "mock",
		Short: "Send a handful of illustrative tool calls to a running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMock(mockAddr)
		},
	}
	mockCmd.Flags().StringVar(&mockAddr, "addr", "http://localhost:8080", "base URL of the running gateway")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aegisgate %s (%s)\n", version, commit)
		},
	}

	rootCmd.AddCommand(startCmd, policyCmd, statusCmd, mockCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStart(configFile, addrOverride string) error {
	if configFile == "" {
		configFile = findConfigFile()
	}

	var cfg config.Config
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Policy.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure policy directory %s: %w", cfg.Policy.Dir, err)
	}

	tp, err := tracing.NewProvider(cfg.Tracing.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutCtx)
	}()
	if cfg.Tracing.Endpoint != "" {
		logger.Warn("OTLP endpoint configured but this build only ships the stdout exporter",
			"endpoint", cfg.Tracing.Endpoint)
	}

	store := policy.NewStore(cfg.Policy.Dir, logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("initial policy load: %w", err)
	}

	watcher, err := policy.NewWatcher(store, logger)
	if err != nil {
		return fmt.Errorf("start policy watcher: %w", err)
	}
	watcher.Start()
	defer func() { _ = watcher.Stop() }()

	gate := approval.NewGate(time.Duration(cfg.Approval.TTL), logger)
	defer gate.Stop()

	registry := forwarder.NewRegistry()
	registry.Register("payments", forwarder.NewPayments())
	registry.Register("files", forwarder.NewFiles())

	hub := api.NewWebSocketHub(logger, cfg.Server.CORS)
	logSink := audit.NewLogSink(logger, tp.Tracer(), audit.DefaultCapacity)
	sink := &api.BroadcastingSink{Inner: logSink, Hub: hub}

	pipeline := gateway.New(store,
		gateway.WithApprovalGate(gate),
		gateway.WithForwarder(registry),
		gateway.WithAuditSink(sink),
		gateway.WithLogger(logger),
	)

	server := api.NewServer(pipeline, store, gate, sink, hub, cfg.Server.CORS, logger)

	stats := store.Current().Stats()
	logger.Info("aegisgate starting",
		"addr", cfg.Server.Addr,
		"policy_dir", cfg.Policy.Dir,
		"policy_files", stats.PolicyFiles,
		"total_agents", stats.TotalAgents,
		"approval_ttl", time.Duration(cfg.Approval.TTL),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigCh:
		logger.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutCtx)
	}
}

func runPolicyValidate(dir string) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := policy.NewStore(dir, logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load policy directory %s: %w", dir, err)
	}
	stats := store.Current().Stats()
	if stats.PolicyFiles == 0 {
		fmt.Printf("no valid policy files found in %s\n", dir)
		return nil
	}
	fmt.Printf("✓ %d policy file(s), %d agent(s) in %s\n", stats.PolicyFiles, stats.TotalAgents, dir)
	for _, f := range store.Current().Files {
		fmt.Printf("  %-40s version=%d agents=%d\n", f.Path, f.Version, len(f.Agents))
	}
	return nil
}

func runPolicyReload(baseURL string) error {
	resp, err := http.Get(strings.TrimRight(baseURL, "/") + "/health")
	if err != nil {
		return fmt.Errorf("failed to reach gateway at %s: %w", baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	fmt.Println("the policy watcher reloads automatically on file change; nothing to trigger manually")
	return nil
}

func runStatus(baseURL string) error {
	resp, err := http.Get(strings.TrimRight(baseURL, "/") + "/health")
	if err != nil {
		fmt.Printf("aegisgate is not reachable at %s\n", baseURL)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Println("aegisgate status")
	fmt.Println(strings.Repeat("-", 32))
	for k, v := range body {
		fmt.Printf("  %-10s %v\n", k+":", v)
	}
	return nil
}

func runMock(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimRight(baseURL, "/")

	calls := []struct {
		agent  string
		tool   string
		action string
		params map[string]any
	}{
		{"billing_bot", "payments", "create", map[string]any{"amount": 500, "currency": "USD", "vendor_id": "v1"}},
		{"billing_bot", "payments", "create", map[string]any{"amount": 1500, "currency": "USD", "vendor_id": "v1"}},
		{"ops_bot", "files", "read", map[string]any{"path": "/hr-docs/benefits.txt"}},
	}

	for _, c := range calls {
		body, _ := json.Marshal(map[string]any{"params": c.params})
		req, _ := http.NewRequest(http.MethodPost,
			fmt.Sprintf("%s/tools/%s/%s", base, c.tool, c.action), strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Agent-ID", c.agent)

		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("  %s %s.%s -> connection error: %v\n", c.agent, c.tool, c.action, err)
			continue
		}
		var result map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&result)
		_ = resp.Body.Close()
		fmt.Printf("  %s %s.%s -> HTTP %d %v\n", c.agent, c.tool, c.action, resp.StatusCode, result)
	}
	return nil
}

func findConfigFile() string {
	for _, candidate := range []string{"aegisgate.yaml", "aegisgate.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
