// Package seed imports fundraising projects from an external JSON feed.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donations/internal/model"
)

const (
	fetchTimeout  = 15 * time.Second
	maxFetchTries = 3
	maxBodyBytes  = 4 << 20
)

// ProjectItem is one project in the external feed.
type ProjectItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	TargetAmount string `json:"target_amount"`
	Active       bool   `json:"active"`
}

// Decode parses a feed document.
func Decode(r io.Reader) ([]ProjectItem, error) {
	var items []ProjectItem
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return items, nil
}

// Fetch downloads and decodes the feed at url, retrying transient failures.
func Fetch(ctx context.Context, client *http.Client, url string) ([]ProjectItem, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	var items []ProjectItem
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch from API: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("API returned status code: %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("API returned status code: %d", resp.StatusCode))
		}

		items, err = Decode(resp.Body)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchTries-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return items, nil
}

// Convert turns feed items into projects, skipping items with an invalid id
// or target. The returned slice keeps feed order.
func Convert(items []ProjectItem) (projects []model.Project, skipped []string) {
	projects = make([]model.Project, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			skipped = append(skipped, item.ID)
			continue
		}
		target, err := decimal.NewFromString(strings.TrimSpace(item.TargetAmount))
		if err != nil || !target.IsPositive() {
			skipped = append(skipped, item.ID)
			continue
		}
		projects = append(projects, model.Project{
			ID:           id,
			Name:         strings.TrimSpace(item.Name),
			Description:  item.Description,
			TargetAmount: target.Round(2),
			IsActive:     item.Active,
		})
	}
	return projects, skipped
}
