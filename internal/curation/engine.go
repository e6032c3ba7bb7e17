// Package curation decides whether a package satisfies a curation policy.
package curation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ralt/apm/internal/models"
)

// Rule names the policy rule behind a decision
type Rule string

const (
	RuleNone                Rule = ""
	RuleAntiFeature         Rule = "blocked_anti_features"
	RuleLicense             Rule = "approved_licenses"
	RuleCategory            Rule = "approved_categories"
	RuleMinDownloads        Rule = "min_downloads"
	RuleMinRating           Rule = "min_rating"
	RuleMinTargetSDK        Rule = "min_target_sdk"
	RuleMaxAge              Rule = "max_age_days"
	RuleRequireSource       Rule = "require_source_code"
	RuleRequireReproducible Rule = "require_reproducible_builds"
)

// Decision is the outcome of evaluating one package
type Decision struct {
	Allowed bool
	Rule    Rule
	Reason  string
}

// Allow is the decision for a package that passes every rule
var Allow = Decision{Allowed: true}

// Deny builds a rejection
func Deny(rule Rule, reason string) Decision {
	return Decision{Rule: rule, Reason: reason}
}

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny: " + d.Reason
}

// Engine evaluates packages against an immutable policy snapshot. It is
// safe for concurrent use.
type Engine struct {
	policy   Policy
	licenses map[string]struct{}
	cats     map[string]struct{}
	blocked  map[string]struct{}
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the clock used for max_age_days
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine snapshots policy. Later changes to policy do not affect the
// engine.
func NewEngine(policy Policy, opts ...Option) *Engine {
	e := &Engine{
		policy:   clonePolicy(policy),
		licenses: foldSet(policy.ApprovedLicenses),
		cats:     foldSet(policy.ApprovedCategories),
		blocked:  foldSet(policy.BlockedAntiFeatures),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns a copy of the engine's policy
func (e *Engine) Policy() Policy {
	return clonePolicy(e.policy)
}

// Evaluate checks meta against the policy using the engine's clock
func (e *Engine) Evaluate(meta models.PackageMetadata) Decision {
	return e.evaluate(meta, e.now())
}

// Evaluate checks meta against policy as of now. Rules run in a fixed
// order and the first failing rule decides:
// anti-features, license, categories, then quality thresholds.
func Evaluate(meta models.PackageMetadata, policy Policy, now time.Time) Decision {
	return NewEngine(policy).evaluate(meta, now)
}

func (e *Engine) evaluate(meta models.PackageMetadata, now time.Time) Decision {
	if len(e.blocked) > 0 {
		tags := append([]string(nil), meta.AntiFeatures...)
		sort.Strings(tags)
		for _, tag := range tags {
			if _, ok := e.blocked[fold(tag)]; ok {
				return Deny(RuleAntiFeature, "blocked anti-feature: "+tag)
			}
		}
	}

	if len(e.licenses) > 0 {
		if _, ok := e.licenses[fold(meta.License)]; !ok {
			return Deny(RuleLicense, "license not approved: "+meta.License)
		}
	}

	if len(e.cats) > 0 && !intersects(e.cats, meta.Categories) {
		return Deny(RuleCategory, "category not approved")
	}

	return e.checkQuality(meta, now)
}

func (e *Engine) checkQuality(meta models.PackageMetadata, now time.Time) Decision {
	q := e.policy.QualityFilters

	if q.MinDownloads != nil && meta.Downloads < *q.MinDownloads {
		return Deny(RuleMinDownloads, fmt.Sprintf("downloads below minimum: %d < %d", meta.Downloads, *q.MinDownloads))
	}

	if q.MinRating != nil && meta.Rating < *q.MinRating {
		return Deny(RuleMinRating, fmt.Sprintf("rating below minimum: %g < %g", meta.Rating, *q.MinRating))
	}

	if q.MinTargetSDK != nil && meta.TargetSDK < *q.MinTargetSDK {
		return Deny(RuleMinTargetSDK, fmt.Sprintf("target SDK below minimum: %d < %d", meta.TargetSDK, *q.MinTargetSDK))
	}

	if q.MaxAgeDays != nil {
		if meta.Added.IsZero() {
			return Deny(RuleMaxAge, "package age unknown")
		}
		if meta.Added.Before(now.AddDate(0, 0, -*q.MaxAgeDays)) {
			// time.Duration saturates past ~292 years
			days := (now.Unix() - meta.Added.Unix()) / 86400
			return Deny(RuleMaxAge, fmt.Sprintf("package too old: %d days > %d", days, *q.MaxAgeDays))
		}
	}

	if q.RequireSourceCode != nil && *q.RequireSourceCode && !meta.HasSource {
		return Deny(RuleRequireSource, "source code not available")
	}

	if q.RequireReproducibleBuilds != nil && *q.RequireReproducibleBuilds && !meta.Reproducible {
		return Deny(RuleRequireReproducible, "build not reproducible")
	}

	return Allow
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func foldSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[fold(v)] = struct{}{}
	}
	return set
}

func intersects(set map[string]struct{}, values []string) bool {
	for _, v := range values {
		if _, ok := set[fold(v)]; ok {
			return true
		}
	}
	return false
}

func clonePolicy(p Policy) Policy {
	out := Policy{
		ApprovedLicenses:    append([]string(nil), p.ApprovedLicenses...),
		ApprovedCategories:  append([]string(nil), p.ApprovedCategories...),
		BlockedAntiFeatures: append([]string(nil), p.BlockedAntiFeatures...),
	}
	q := p.QualityFilters
	if q.MinDownloads != nil {
		v := *q.MinDownloads
		out.QualityFilters.MinDownloads = &v
	}
	if q.MinRating != nil {
		v := *q.MinRating
		out.QualityFilters.MinRating = &v
	}
	if q.MinTargetSDK != nil {
		v := *q.MinTargetSDK
		out.QualityFilters.MinTargetSDK = &v
	}
	if q.MaxAgeDays != nil {
		v := *q.MaxAgeDays
		out.QualityFilters.MaxAgeDays = &v
	}
	if q.RequireSourceCode != nil {
		v := *q.RequireSourceCode
		out.QualityFilters.RequireSourceCode = &v
	}
	if q.RequireReproducibleBuilds != nil {
		v := *q.RequireReproducibleBuilds
		out.QualityFilters.RequireReproducibleBuilds = &v
	}
	return out
}
