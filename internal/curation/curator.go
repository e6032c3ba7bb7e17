package curation

import (
	"sort"
	"time"

	"github.com/ralt/apm/internal/models"
	"github.com/sirupsen/logrus"
)

// Verdict is one package's entry in a curation report
type Verdict struct {
	PackageID string `json:"package_id"`
	Name      string `json:"name,omitempty"`
	Rule      Rule   `json:"rule,omitempty"`
	Reason    string `json:"reason"`
}

// Report is the result of curating a set of packages
type Report struct {
	Timestamp    time.Time `json:"curation_timestamp"`
	PolicyDigest string    `json:"policy_sha256,omitempty"`
	Source       string    `json:"source,omitempty"`
	Approved     []Verdict `json:"approved_packages"`
	Rejected     []Verdict `json:"rejected_packages"`
}

// Curate evaluates every package with engine. Both lists are sorted by
// package ID so reports are stable across runs.
func Curate(engine *Engine, packages []models.PackageMetadata) *Report {
	report := &Report{
		Timestamp: engine.now().UTC(),
		Approved:  []Verdict{},
		Rejected:  []Verdict{},
	}

	for _, pkg := range packages {
		d := engine.Evaluate(pkg)
		v := Verdict{PackageID: pkg.PackageID, Name: pkg.Name, Rule: d.Rule, Reason: d.Reason}

		if d.Allowed {
			v.Reason = "package approved"
			report.Approved = append(report.Approved, v)
			logrus.Debugf("✓ %s", pkg.PackageID)
		} else {
			report.Rejected = append(report.Rejected, v)
			logrus.Debugf("✗ %s: %s", pkg.PackageID, d.Reason)
		}
	}

	sort.Slice(report.Approved, func(i, j int) bool { return report.Approved[i].PackageID < report.Approved[j].PackageID })
	sort.Slice(report.Rejected, func(i, j int) bool { return report.Rejected[i].PackageID < report.Rejected[j].PackageID })

	logrus.Infof("Curated %d packages, rejected %d", len(report.Approved), len(report.Rejected))
	return report
}

// RejectionsByRule counts rejected packages per rule
func (r *Report) RejectionsByRule() map[Rule]int {
	counts := make(map[Rule]int)
	for _, v := range r.Rejected {
		counts[v.Rule]++
	}
	return counts
}
