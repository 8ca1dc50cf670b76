package domain

import (
	"strings"
	"time"
)

// InsightType classifies a narrative insight.
type InsightType string

const (
	InsightTypeWarning     InsightType = "warning"
	InsightTypeTip         InsightType = "tip"
	InsightTypePattern     InsightType = "pattern"
	InsightTypeOpportunity InsightType = "opportunity"
)

// Severity of an insight.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// InsightTTL is how long a generated insight set stays valid.
const InsightTTL = 24 * time.Hour

// Insight is a single narrative observation about a user's finances.
type Insight struct {
	Type       InsightType `json:"type"`
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	Severity   Severity    `json:"severity"`
	Actionable bool        `json:"actionable"`
}

// Valid reports whether the insight has the required shape.
func (i Insight) Valid() bool {
	switch i.Type {
	case InsightTypeWarning, InsightTypeTip, InsightTypePattern, InsightTypeOpportunity:
	default:
		return false
	}
	switch i.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return false
	}
	return strings.TrimSpace(i.Title) != "" && strings.TrimSpace(i.Message) != ""
}

// InsightCacheEntry is the single cached insight set for a user.
type InsightCacheEntry struct {
	UserID      string    `json:"user_id"`
	Insights    []Insight `json:"insights"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpireAt    time.Time `json:"expire_at"`
}

// NewInsightCacheEntry stamps a fresh entry generated at now.
func NewInsightCacheEntry(userID string, insights []Insight, now time.Time) *InsightCacheEntry {
	return &InsightCacheEntry{
		UserID:      userID,
		Insights:    insights,
		GeneratedAt: now,
		ExpireAt:    now.Add(InsightTTL),
	}
}

// Usable reports whether the entry may be served from cache at now.
func (e *InsightCacheEntry) Usable(now time.Time) bool {
	return e != nil && e.ExpireAt.After(now) && len(e.Insights) > 0
}
