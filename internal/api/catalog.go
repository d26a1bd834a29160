// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package api

import (
	"context"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/kyarahub/discovery/internal/discovery"
)

// FileCatalog serves a candidate pool loaded from a JSON file: an
// array of content items, already filtered for visibility. Intended
// for deployments where the catalog is pushed as a file; platforms
// with a live catalog implement CatalogProvider directly.
type FileCatalog struct {
	mu    sync.RWMutex
	path  string
	items []discovery.ContentItem
}

// NewFileCatalog loads the catalog file eagerly so a broken file fails
// startup, not the first request.
func NewFileCatalog(path string) (*FileCatalog, error) {
	c := &FileCatalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file, replacing the pool atomically.
func (c *FileCatalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", c.path, err)
	}

	var items []discovery.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse catalog %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

// Candidates implements CatalogProvider.
func (c *FileCatalog) Candidates(ctx context.Context) ([]discovery.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]discovery.ContentItem, len(c.items))
	copy(out, c.items)
	return out, nil
}

// StaticCatalog serves a fixed in-memory pool. Useful for tests.
type StaticCatalog struct {
	Items []discovery.ContentItem
}

// Candidates implements CatalogProvider.
func (c StaticCatalog) Candidates(ctx context.Context) ([]discovery.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Items, nil
}
