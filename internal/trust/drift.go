package trust

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DriftType names the behavioural dimension a DriftAlert was raised on.
type DriftType string

const (
	DriftMerchantShift DriftType = "merchant_shift"
	DriftAmountAnomaly DriftType = "amount_anomaly"
	DriftVelocityChange DriftType = "velocity_change"
	DriftCategoryDrift  DriftType = "category_drift"
	DriftTimePattern    DriftType = "time_pattern_change"
)

// DriftSeverity classifies a DriftAlert's urgency.
type DriftSeverity string

const (
	DriftLow      DriftSeverity = "low"
	DriftMedium   DriftSeverity = "medium"
	DriftHigh     DriftSeverity = "high"
	DriftCritical DriftSeverity = "critical"
)

// AmountStats summarizes an amount distribution without retaining raw
// samples, per spec.md §4.2's "raw baseline samples MUST NOT be persisted".
type AmountStats struct {
	Mean, Std, Median, P25, P75, P90, P95 float64
}

// SpendingProfile is a 30-day (or 7-day, for "recent") statistical baseline
// of an agent's spending behaviour.
type SpendingProfile struct {
	AgentID             string
	MerchantDistribution map[string]float64
	CategoryDistribution map[string]float64
	TimeDistribution      map[int]float64 // hour-of-day 0-23 -> frequency
	Amounts               AmountStats
	VelocityPerDay        float64
	TotalTransactions     int
	WindowStart, WindowEnd time.Time
}

// Transaction is the minimal shape BuildProfile needs from a ledger entry.
type Transaction struct {
	AmountMinor int64
	Merchant    string
	Category    string
	Timestamp   time.Time
}

// BuildProfile computes a SpendingProfile from a transaction history within
// the trailing windowDays.
func BuildProfile(agentID string, txs []Transaction, windowDays int, now time.Time) (SpendingProfile, bool) {
	windowStart := now.AddDate(0, 0, -windowDays)
	var filtered []Transaction
	for _, tx := range txs {
		if !tx.Timestamp.Before(windowStart) {
			filtered = append(filtered, tx)
		}
	}
	if len(filtered) == 0 {
		return SpendingProfile{}, false
	}

	total := len(filtered)
	merchantCounts := map[string]int{}
	categoryCounts := map[string]int{}
	hourCounts := map[int]int{}
	amounts := make([]float64, 0, total)
	var minTS, maxTS time.Time

	for i, tx := range filtered {
		m := tx.Merchant
		if m == "" {
			m = "unknown"
		}
		merchantCounts[m]++
		c := tx.Category
		if c == "" {
			c = "other"
		}
		categoryCounts[c]++
		hourCounts[tx.Timestamp.Hour()]++
		if tx.AmountMinor > 0 {
			amounts = append(amounts, float64(tx.AmountMinor))
		}
		if i == 0 || tx.Timestamp.Before(minTS) {
			minTS = tx.Timestamp
		}
		if i == 0 || tx.Timestamp.After(maxTS) {
			maxTS = tx.Timestamp
		}
	}

	merchantDist := make(map[string]float64, len(merchantCounts))
	for k, v := range merchantCounts {
		merchantDist[k] = float64(v) / float64(total)
	}
	categoryDist := make(map[string]float64, len(categoryCounts))
	for k, v := range categoryCounts {
		categoryDist[k] = float64(v) / float64(total)
	}
	timeDist := make(map[int]float64, len(hourCounts))
	for k, v := range hourCounts {
		timeDist[k] = float64(v) / float64(total)
	}

	stats := amountStats(amounts)

	velocity := float64(total) / float64(windowDays)
	if len(filtered) >= 2 {
		spanDays := maxTS.Sub(minTS).Hours() / 24
		if spanDays < 1 {
			spanDays = 1
		}
		velocity = float64(total) / spanDays
	}

	return SpendingProfile{
		AgentID: agentID, MerchantDistribution: merchantDist, CategoryDistribution: categoryDist,
		TimeDistribution: timeDist, Amounts: stats, VelocityPerDay: velocity,
		TotalTransactions: total, WindowStart: windowStart, WindowEnd: now,
	}, true
}

func amountStats(amounts []float64) AmountStats {
	if len(amounts) == 0 {
		return AmountStats{}
	}
	sorted := append([]float64(nil), amounts...)
	sort.Float64s(sorted)

	mean := 0.0
	for _, a := range sorted {
		mean += a
	}
	mean /= float64(len(sorted))

	std := 0.0
	if len(sorted) > 1 {
		var sq float64
		for _, a := range sorted {
			d := a - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(len(sorted)-1))
	}

	return AmountStats{
		Mean: mean, Std: std,
		Median: percentile(sorted, 50), P25: percentile(sorted, 25),
		P75: percentile(sorted, 75), P90: percentile(sorted, 90), P95: percentile(sorted, 95),
	}
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	k := float64(len(sorted)-1) * (float64(p) / 100.0)
	f := int(k)
	c := f + 1
	if c >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	if f < 0 {
		return sorted[0]
	}
	return sorted[f]*(float64(c)-k) + sorted[c]*(k-float64(f))
}

// DriftAlert documents a statistically significant deviation from baseline.
type DriftAlert struct {
	AgentID    string
	Type       DriftType
	Severity   DriftSeverity
	Confidence float64
	Details    map[string]any
	DetectedAt time.Time
}

// Config tunes the drift detector's sensitivity and velocity threshold.
type Config struct {
	Sensitivity       float64 // chi-squared significance level, default 0.05
	VelocityThreshold float64 // z-score-like ratio threshold, default 2.0
}

func DefaultConfig() Config {
	return Config{Sensitivity: 0.05, VelocityThreshold: 2.0}
}

// DetectDrift compares a recent profile against a baseline, emitting one
// alert per dimension that crosses the configured significance threshold.
func DetectDrift(cfg Config, baseline, recent SpendingProfile, now time.Time) []DriftAlert {
	var alerts []DriftAlert

	if chi2, p := chiSquaredTest(recent.MerchantDistribution, baseline.MerchantDistribution); p < cfg.Sensitivity {
		alerts = append(alerts, DriftAlert{
			AgentID: recent.AgentID, Type: DriftMerchantShift, Severity: severityFromP(p),
			Confidence: 1 - p, DetectedAt: now,
			Details: map[string]any{"chi_squared": chi2, "p_value": p},
		})
	}

	if dev := compareAmountDistributions(baseline.Amounts, recent.Amounts); dev > cfg.VelocityThreshold {
		alerts = append(alerts, DriftAlert{
			AgentID: recent.AgentID, Type: DriftAmountAnomaly, Severity: severityFromDeviation(dev),
			Confidence: math.Min(dev/5.0, 1.0), DetectedAt: now,
			Details: map[string]any{"deviation_score": dev, "baseline_mean": baseline.Amounts.Mean, "current_mean": recent.Amounts.Mean},
		})
	}

	if chi2, p := chiSquaredTest(recent.CategoryDistribution, baseline.CategoryDistribution); p < cfg.Sensitivity {
		alerts = append(alerts, DriftAlert{
			AgentID: recent.AgentID, Type: DriftCategoryDrift, Severity: severityFromP(p),
			Confidence: 1 - p, DetectedAt: now,
			Details: map[string]any{"chi_squared": chi2, "p_value": p},
		})
	}

	timeBaseline := map[string]float64{}
	for h, f := range baseline.TimeDistribution {
		timeBaseline[hourKey(h)] = f
	}
	timeRecent := map[string]float64{}
	for h, f := range recent.TimeDistribution {
		timeRecent[hourKey(h)] = f
	}
	if chi2, p := chiSquaredTest(timeRecent, timeBaseline); p < cfg.Sensitivity {
		alerts = append(alerts, DriftAlert{
			AgentID: recent.AgentID, Type: DriftTimePattern, Severity: severityFromP(p),
			Confidence: 1 - p, DetectedAt: now,
			Details: map[string]any{"chi_squared": chi2, "p_value": p},
		})
	}

	if ok, reason := velocityCheck(recent.VelocityPerDay, baseline.VelocityPerDay, cfg.VelocityThreshold); !ok {
		z := 3.0
		if baseline.VelocityPerDay > 0 {
			z = math.Abs(recent.VelocityPerDay-baseline.VelocityPerDay) / (baseline.VelocityPerDay * 0.5)
		}
		alerts = append(alerts, DriftAlert{
			AgentID: recent.AgentID, Type: DriftVelocityChange, Severity: severityFromDeviation(z),
			Confidence: math.Min(z/5.0, 1.0), DetectedAt: now,
			Details: map[string]any{"baseline_velocity": baseline.VelocityPerDay, "current_velocity": recent.VelocityPerDay, "reason": reason},
		})
	}

	return alerts
}

func hourKey(h int) string {
	return fmt.Sprintf("%02d", h)
}

// chiSquaredTest mirrors the original detector's rough goodness-of-fit
// approximation (no scipy-equivalent available): sum((O-E)^2/E) over the
// union of categories, then a normal-approximation p-value since dof is
// usually small in this domain.
func chiSquaredTest(observed, expected map[string]float64) (chiSquared, pValue float64) {
	keys := map[string]bool{}
	for k := range observed {
		keys[k] = true
	}
	for k := range expected {
		keys[k] = true
	}
	if len(keys) == 0 {
		return 0, 1
	}
	for k := range keys {
		obs := observed[k]
		exp := expected[k]
		if exp == 0 {
			exp = 0.001
		}
		chiSquared += (obs - exp) * (obs - exp) / exp
	}
	dof := len(keys) - 1
	if dof < 1 {
		dof = 1
	}
	return chiSquared, chiSquaredPValue(chiSquared, dof)
}

func chiSquaredPValue(chi2 float64, dof int) float64 {
	z := (chi2 - float64(dof)) / math.Sqrt(2*float64(dof))
	switch {
	case z < -3:
		return 0.999
	case z > 3:
		return 0.001
	default:
		return clampFloat(0.5*(1-z/4), 0.001, 0.999)
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// compareAmountDistributions returns a deviation score (0 = identical,
// higher = more different) combining mean and std shifts, normalized by
// baseline std where available.
func compareAmountDistributions(baseline, current AmountStats) float64 {
	deviation := 0.0
	if baseline.Std > 0 {
		deviation += math.Abs(current.Mean-baseline.Mean) / baseline.Std
	} else if baseline.Mean > 0 {
		deviation += math.Abs(current.Mean-baseline.Mean) / baseline.Mean
	} else if current.Mean > 0 {
		deviation += 5.0
	}

	if baseline.Std > 0 {
		deviation += math.Abs(current.Std-baseline.Std) / baseline.Std
	} else if current.Std > 0 {
		denom := baseline.Mean
		if denom < 1 {
			denom = 1
		}
		deviation += current.Std / denom
	}
	return deviation
}

func velocityCheck(current, baseline, threshold float64) (bool, string) {
	if baseline == 0 {
		if current > 10 {
			return false, "velocity_spike_from_zero"
		}
		return true, "OK"
	}
	ratio := current / baseline
	if ratio > 1+threshold {
		return false, "velocity_increased"
	}
	if ratio < 1/(1+threshold) {
		return false, "velocity_decreased"
	}
	return true, "OK"
}

func severityFromP(p float64) DriftSeverity {
	switch {
	case p < 0.001:
		return DriftCritical
	case p < 0.01:
		return DriftHigh
	case p < 0.05:
		return DriftMedium
	default:
		return DriftLow
	}
}

func severityFromDeviation(dev float64) DriftSeverity {
	switch {
	case dev >= 4.0:
		return DriftCritical
	case dev >= 3.0:
		return DriftHigh
	case dev >= 2.0:
		return DriftMedium
	default:
		return DriftLow
	}
}
