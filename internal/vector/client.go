// Package vector implements the vector store client on Redis with RediSearch,
// holding one record per indexable listing.
package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Config holds connection parameters for the vector store. QueryTimeout
// bounds each KNN query; zero means the caller's context is the only bound.
type Config struct {
	Addrs        []string
	Password     string
	KeyPrefix    string
	IndexName    string
	Dimensions   int
	QueryTimeout time.Duration
}

// Store is a RediSearch-backed vector index over listing records.
type Store struct {
	client       rueidis.Client
	prefix       string
	index        string
	dim          int
	queryTimeout time.Duration
}

// NewStore creates a vector store client.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Store{
		client:       client,
		prefix:       cfg.KeyPrefix,
		index:        cfg.IndexName,
		dim:          cfg.Dimensions,
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// IsHealthy reports reachability without surfacing the error.
func (s *Store) IsHealthy(ctx context.Context) bool {
	return s.Ping(ctx) == nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for vector store: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}
