// Copyright 2024 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serde

import "time"

// Severity classifies a HealthReport's overall or per-entity condition.
type Severity int

// The severities a health report can assign.
const (
	Healthy Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "critical"
	case Warning:
		return "warning"
	default:
		return "healthy"
	}
}

// Stats is a point-in-time snapshot of a Cache's global counters.
type Stats struct {
	TotalRequests   int64
	Hits            int64
	Misses          int64
	CachedItemCount int
	LastAccess      time.Time
	LastClear       time.Time
	Uptime          time.Duration
}

// HitRate returns hits/total, or 0 when no requests have been made.
func (s Stats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalRequests)
}

// Stats computes a snapshot of the cache's current counters.
func (c *Cache) Stats() Stats {
	var lastAccess, lastClear time.Time
	if ns := c.lastAccess.Load(); ns != 0 {
		lastAccess = time.Unix(0, ns)
	}
	if ns := c.lastClear.Load(); ns != 0 {
		lastClear = time.Unix(0, ns)
	}
	return Stats{
		TotalRequests:   c.totalRequests.Load(),
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		CachedItemCount: c.Len(),
		LastAccess:      lastAccess,
		LastClear:       lastClear,
		Uptime:          time.Since(c.startedAt),
	}
}

// EntityStats is a point-in-time snapshot of one entity's per-role,
// per-operation hit/miss counters.
type EntityStats struct {
	EntityTypeID   string
	KeySerHits     int64
	KeySerMisses   int64
	ValSerHits     int64
	ValSerMisses   int64
	KeyDeserHits   int64
	KeyDeserMisses int64
	ValDeserHits   int64
	ValDeserMisses int64
}

// HitRate returns this entity's combined hit rate across all roles and
// operations, or 0 when the entity has never been requested.
func (e EntityStats) HitRate() float64 {
	hits := e.KeySerHits + e.ValSerHits + e.KeyDeserHits + e.ValDeserHits
	misses := e.KeySerMisses + e.ValSerMisses + e.KeyDeserMisses + e.ValDeserMisses
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// EntityStats returns a snapshot of every entity the cache has tracked
// counters for, in no particular order.
func (c *Cache) EntityStats() []EntityStats {
	c.countersMu.RLock()
	defer c.countersMu.RUnlock()
	out := make([]EntityStats, 0, len(c.counters))
	for entityTypeID, counters := range c.counters {
		out = append(out, EntityStats{
			EntityTypeID:   entityTypeID,
			KeySerHits:     counters.keySerHits.Load(),
			KeySerMisses:   counters.keySerMisses.Load(),
			ValSerHits:     counters.valSerHits.Load(),
			ValSerMisses:   counters.valSerMisses.Load(),
			KeyDeserHits:   counters.keyDeserHits.Load(),
			KeyDeserMisses: counters.keyDeserMisses.Load(),
			ValDeserHits:   counters.valDeserHits.Load(),
			ValDeserMisses: counters.valDeserMisses.Load(),
		})
	}
	return out
}

// Issue describes a single problem surfaced by a HealthReport.
type Issue struct {
	Severity Severity
	Message  string
}

// HealthReport summarizes a Cache's current performance, following the
// thresholds global hit rate < 0.70 => critical, < 0.90 => warning, else
// healthy; per-entity hit rate < 0.50 is a medium-severity issue.
type HealthReport struct {
	Overall         Severity
	GlobalHitRate   float64
	Issues          []Issue
	Recommendations []string
	LowPerforming   []string
}

// Health computes a HealthReport from the cache's current stats.
func (c *Cache) Health() HealthReport {
	stats := c.Stats()
	hitRate := stats.HitRate()

	report := HealthReport{GlobalHitRate: hitRate}
	switch {
	case hitRate < 0.70:
		report.Overall = Critical
		report.Issues = append(report.Issues, Issue{Severity: Critical, Message: "global cache hit rate below 0.70"})
		report.Recommendations = append(report.Recommendations, "pre-warm frequently accessed entities before traffic ramps")
	case hitRate < 0.90:
		report.Overall = Warning
		report.Issues = append(report.Issues, Issue{Severity: Warning, Message: "global cache hit rate below 0.90"})
	default:
		report.Overall = Healthy
	}

	if stats.Misses > stats.Hits && stats.TotalRequests > 0 {
		report.Recommendations = append(report.Recommendations, "investigate schema registration churn: miss count exceeds hit count")
	}

	for _, entity := range c.EntityStats() {
		if rate := entity.HitRate(); rate < 0.50 {
			report.Issues = append(report.Issues, Issue{
				Severity: Warning,
				Message:  "entity " + entity.EntityTypeID + " hit rate below 0.50",
			})
			report.LowPerforming = append(report.LowPerforming, entity.EntityTypeID)
		}
	}
	if len(report.LowPerforming) > 0 {
		report.Recommendations = append(report.Recommendations, "review producer/consumer wiring for low-performing entities before scaling traffic")
	}
	return report
}
