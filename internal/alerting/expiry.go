package alerting

import (
	"context"
	"fmt"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/utils"
)

// DefaultExpiryLookahead is the scan horizon in days when none is given
const DefaultExpiryLookahead = 30

// KeyStore lists API keys nearing expiry
type KeyStore interface {
	ListExpiring(ctx context.Context, cutoff time.Time) ([]*models.APIKey, error)
}

// ScanResult summarises one expiry scan
type ScanResult struct {
	Scanned    int `json:"scanned"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
}

// ExpiryScanner raises key_expiry alerts for keys that expire soon
type ExpiryScanner struct {
	keys    KeyStore
	manager *Manager
	now     func() time.Time
	logger  *utils.Logger
}

// NewExpiryScanner creates an expiry scanner
func NewExpiryScanner(keys KeyStore, manager *Manager) *ExpiryScanner {
	return &ExpiryScanner{
		keys:    keys,
		manager: manager,
		now:     time.Now,
		logger:  utils.NewLogger("expiry-scanner"),
	}
}

// ExpirySeverity maps days left to alert severity
func ExpirySeverity(daysUntilExpiry int) models.Severity {
	switch {
	case daysUntilExpiry <= 7:
		return models.SeverityHigh
	case daysUntilExpiry <= 14:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Scan alerts on active keys expiring within daysAhead days, including keys
// that are already past expiry (days <= 0, severity high). Re-running on the
// same day only produces duplicates.
func (s *ExpiryScanner) Scan(ctx context.Context, daysAhead int) (ScanResult, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultExpiryLookahead
	}

	now := s.now().UTC()
	cutoff := now.Add(time.Duration(daysAhead) * 24 * time.Hour)

	keys, err := s.keys.ListExpiring(ctx, cutoff)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to list expiring keys: %w", err)
	}

	var result ScanResult
	for _, key := range keys {
		days, ok := key.DaysUntilExpiry(now)
		if !ok {
			continue
		}
		result.Scanned++

		keyID := key.ID
		provider := key.ServiceProvider
		threshold := float64(daysAhead)
		actual := float64(days)

		title := fmt.Sprintf("API key %q expires in %d days", key.Name, days)
		if days <= 0 {
			title = fmt.Sprintf("API key %q has expired", key.Name)
		}

		res, err := s.manager.CreateAlert(ctx, AlertRequest{
			Type:            models.AlertKeyExpiry,
			Severity:        ExpirySeverity(days),
			Scope:           keyID.String(),
			Title:           title,
			Message:         fmt.Sprintf("API key %q for %s expires on %s", key.Name, provider, key.ExpiresAt.UTC().Format(time.RFC3339)),
			APIKeyID:        &keyID,
			ServiceProvider: &provider,
			ThresholdValue:  &threshold,
			ActualValue:     &actual,
		})
		if err != nil {
			return result, err
		}
		if res.Created {
			result.Created++
		} else {
			result.Duplicates++
		}
	}

	s.logger.Info("Key expiry scan complete", "scanned", result.Scanned, "created", result.Created, "duplicates", result.Duplicates)
	return result, nil
}
