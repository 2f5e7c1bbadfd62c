package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/duome/duochat/pkg/datastore"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	if s.media == nil {
		return fmt.Errorf("server: missing media store dependency")
	}
	defer func() { _ = s.store.Close() }()

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server: listen: %w", err)
		}
	}()

	slog.Info("duochat server running",
		"listen", s.cfg.ListenAddr,
		"db", s.cfg.DBPath,
	)

	// Start Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal or listener failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.Shutdown()
		return err
	case <-sigCh:
	}

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown gracefully stops the server: new connections are refused, then
// every live session is closed so peers see their offline notices.
func (s *Server) Shutdown() {
	s.cancel()
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(ctx)
	}
	for _, sess := range s.presence.Sessions() {
		sess.Close()
	}
}

// ExportUsersYAML dumps the registered accounts as YAML for backups.
// Password hashes are included so a restore keeps the serials working.
func ExportUsersYAML(store datastore.UserReadProvider) ([]byte, error) {
	users, err := store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("server: list users: %w", err)
	}

	type exportUser struct {
		ID           int64  `yaml:"id"`
		Nickname     string `yaml:"nickname"`
		PasswordHash string `yaml:"password_hash"`
		CreatedAt    string `yaml:"created_at"`
	}
	out := make([]exportUser, 0, len(users))
	for _, u := range users {
		out = append(out, exportUser{
			ID:           u.ID,
			Nickname:     u.Nickname,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("server: marshal users: %w", err)
	}
	return data, nil
}
