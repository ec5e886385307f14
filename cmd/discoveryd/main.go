// Command discoveryd runs the case-isolated discovery processing engine as
// an HTTP/websocket server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/casegraph/discovery"
	"github.com/casegraph/discovery/server"
	"github.com/casegraph/discovery/vectorstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "discoveryd",
		Short: "Case-isolated legal discovery processing engine",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newEnsureCaseCmd())
	root.AddCommand(newStatusCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		addr        string
		apiKey      string
		corsOrigins string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, addr, apiKey, corsOrigins)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (yaml/json/toml)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "bearer token required of callers (empty disables auth)")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "allowed CORS origin (empty disables CORS headers)")

	return cmd
}

func runServe(configPath, addr, apiKey, corsOrigins string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cm, err := discovery.NewConfigManager(configPath)
	if err != nil {
		slog.Error("loading configuration", "error", err)
		return err
	}
	cfg := cm.Get()

	if v := os.Getenv("DISCOVERY_API_KEY"); v != "" {
		apiKey = v
	}
	if v := os.Getenv("DISCOVERY_CORS_ORIGINS"); v != "" {
		corsOrigins = v
	}
	if cfg.Classifier.APIKey == "" {
		cfg.Classifier.APIKey = os.Getenv("DISCOVERY_CLASSIFIER_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("DISCOVERY_EMBEDDING_API_KEY")
	}

	svc, err := discovery.NewServices(cfg, slog.Default(), nil)
	if err != nil {
		slog.Error("creating services", "error", err)
		return err
	}
	defer svc.Close()

	srv := server.New(svc, nil)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(apiKey, corsOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming websocket progress
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("discoveryd starting", "addr", addr, "storageDir", cfg.StorageDir)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down discoveryd...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
		return err
	}

	slog.Info("discoveryd stopped")
	return nil
}

func newEnsureCaseCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ensure-case <caseName>",
		Short: "Create the per-case collections if they don't already exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnsureCase(configPath, args[0])
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (yaml/json/toml)")
	return cmd
}

// runEnsureCase builds a store directly from config rather than going
// through discovery.NewServices: EnsureCollections needs nothing but the
// storage layer, and a CLI invocation shouldn't pay for standing up
// classifier/embedding providers it will never call.
func runEnsureCase(configPath, caseName string) error {
	cm, err := discovery.NewConfigManager(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := cm.Get()

	store := vectorstore.New(vectorstore.Config{
		StorageDir:        cfg.StorageDir,
		EmbeddingDim:      cfg.Encode.EmbeddingDim,
		SharedCollections: cfg.SharedCollections,
	})
	defer store.Close()

	present, err := store.EnsureCollections(caseName)
	if err != nil {
		return fmt.Errorf("ensuring collections for case %q: %w", caseName, err)
	}

	for _, coll := range []string{
		vectorstore.CollChunks, vectorstore.CollChunksHybrid, vectorstore.CollFacts,
		vectorstore.CollDepositions, vectorstore.CollExhibits, vectorstore.CollTimeline,
	} {
		status := "empty"
		if present[coll] {
			status = "populated"
		}
		fmt.Printf("%s\t%s\n", vectorstore.CollectionName(caseName, coll), status)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status <processingId>",
		Short: "Report a processing job's status from a running discoveryd server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(addr, args[0])
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of a running discoveryd server")
	return cmd
}

// runStatus queries a live server's status endpoint rather than
// reconstructing an Orchestrator: job state lives in that process's
// in-memory job map (orchestrator.Orchestrator), which a separate CLI
// invocation has no access to.
func runStatus(addr, processingID string) error {
	url := addr + "/discovery/status/" + processingID
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("querying %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
