// Package forecast projects daily cost forward from stored daily analyses
// using a closed-form least-squares trend.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"sentinel/internal/models"
	"sentinel/internal/utils"
)

const (
	// DefaultHorizonDays is the forecast length when none is given
	DefaultHorizonDays = 30
	// MaxHorizonDays bounds the forecast length
	MaxHorizonDays = 365
	// MinHistoryDays is the least history a forecast is built on
	MinHistoryDays = 7
	// HistoryWindowDays is how far back daily records are loaded
	HistoryWindowDays = 90
	// MinConfidence is the floor confidence decays toward across the horizon
	MinConfidence = 0.5
)

// ErrInsufficientData is returned when fewer than MinHistoryDays of history exist
var ErrInsufficientData = errors.New("insufficient historical data")

// ErrInvalidHorizon is returned for horizons outside 1..MaxHorizonDays
var ErrInvalidHorizon = errors.New("invalid forecast horizon")

// Trend is the sign of the fitted slope
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// DailyProjection is one forecast day
type DailyProjection struct {
	Day           int       `json:"day"`
	Date          time.Time `json:"date"`
	ProjectedCost float64   `json:"projected_cost"`
	Confidence    float64   `json:"confidence"`
}

// Forecast is the result of a projection
type Forecast struct {
	HorizonDays    int               `json:"horizon_days"`
	HistoryDays    int               `json:"history_days"`
	MeanDailyCost  float64           `json:"mean_daily_cost"`
	TrendSlope     float64           `json:"trend_slope"`
	Trend          Trend             `json:"trend"`
	Projections    []DailyProjection `json:"projections"`
	TotalProjected float64           `json:"total_projected"`
}

// HistoryStore loads daily cost analyses
type HistoryStore interface {
	ListSince(ctx context.Context, period models.PeriodType, since time.Time) ([]*models.CostAnalysisRecord, error)
}

// Forecaster builds cost forecasts from stored history
type Forecaster struct {
	history HistoryStore
	now     func() time.Time
	logger  *utils.Logger
}

// NewForecaster creates a forecaster
func NewForecaster(history HistoryStore) *Forecaster {
	return &Forecaster{
		history: history,
		now:     time.Now,
		logger:  utils.NewLogger("forecaster"),
	}
}

// Forecast projects the next horizonDays of daily cost. A zero horizon uses
// DefaultHorizonDays.
func (f *Forecaster) Forecast(ctx context.Context, horizonDays int) (*Forecast, error) {
	if horizonDays == 0 {
		horizonDays = DefaultHorizonDays
	}
	if horizonDays < 0 || horizonDays > MaxHorizonDays {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizonDays)
	}

	today := f.now().UTC().Truncate(24 * time.Hour)
	records, err := f.history.ListSince(ctx, models.PeriodDaily, today.AddDate(0, 0, -HistoryWindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load cost history: %w", err)
	}

	history := make([]float64, 0, len(records))
	last := today.AddDate(0, 0, -1)
	for _, r := range records {
		history = append(history, r.TotalCost.InexactFloat64())
		if r.AnalysisDate.After(last) {
			last = r.AnalysisDate
		}
	}

	result, err := Project(history, horizonDays)
	if err != nil {
		return nil, err
	}

	for i := range result.Projections {
		result.Projections[i].Date = last.AddDate(0, 0, i+1)
	}

	f.logger.Info("Cost forecast built",
		"history_days", result.HistoryDays,
		"horizon_days", horizonDays,
		"trend", result.Trend,
		"total_projected", fmt.Sprintf("%.2f", result.TotalProjected))

	return result, nil
}

// Project fits mean and OLS slope over x = 1..n and projects day i as
// max(0, mean + slope×i) with confidence max(0.5, 1 − (i/horizon)×0.5).
func Project(history []float64, horizon int) (*Forecast, error) {
	n := len(history)
	if n < MinHistoryDays {
		return nil, fmt.Errorf("%w: have %d days, need %d", ErrInsufficientData, n, MinHistoryDays)
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}

	mean, slope := fitTrend(history)

	result := &Forecast{
		HorizonDays:   horizon,
		HistoryDays:   n,
		MeanDailyCost: mean,
		TrendSlope:    slope,
		Trend:         trendOf(slope),
		Projections:   make([]DailyProjection, 0, horizon),
	}

	for i := 1; i <= horizon; i++ {
		cost := math.Max(0, mean+slope*float64(i))
		confidence := math.Max(MinConfidence, 1-(float64(i)/float64(horizon))*0.5)
		result.Projections = append(result.Projections, DailyProjection{
			Day:           i,
			ProjectedCost: cost,
			Confidence:    confidence,
		})
		result.TotalProjected += cost
	}

	return result, nil
}

// fitTrend returns the mean of ys and the least-squares slope of ys against 1..n.
func fitTrend(ys []float64) (mean, slope float64) {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	mean = sumY / n
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return mean, 0
	}
	return mean, (n*sumXY - sumX*sumY) / denom
}

func trendOf(slope float64) Trend {
	switch {
	case slope > 0:
		return TrendIncreasing
	case slope < 0:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
