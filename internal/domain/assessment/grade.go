// Package assessment models one student's grades for one discipline within a
// course, the grade engine that classifies them, and the batch artifact that
// groups assessments produced by a single bulk submission.
package assessment

import (
	"math"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE COMPONENTS
// ══════════════════════════════════════════════════════════════════════════════

// Component names one of the four grade slots.
type Component string

const (
	ComponentVF   Component = "vf"
	ComponentAVI  Component = "avi"
	ComponentAVII Component = "avii"
	ComponentVFE  Component = "vfe"
)

// IsValid checks if the component is known.
func (c Component) IsValid() bool {
	switch c {
	case ComponentVF, ComponentAVI, ComponentAVII, ComponentVFE:
		return true
	default:
		return false
	}
}

const (
	MinGrade = 0.0
	MaxGrade = 10.0

	// Sentinel is what callers send for "exclude this component".
	Sentinel = -1.0
)

// Grades holds the four optional components. A nil pointer means absent.
type Grades struct {
	VF   *float64 `json:"vf"`
	AVI  *float64 `json:"avi"`
	AVII *float64 `json:"avii"`
	VFE  *float64 `json:"vfe"`
}

// Score returns a pointer to v, for building Grades literals.
func Score(v float64) *float64 {
	return &v
}

// NormalizeSentinel turns the -1 sentinel into an absent component.
func NormalizeSentinel(v *float64) *float64 {
	if v == nil || *v == Sentinel {
		return nil
	}
	out := *v
	return &out
}

// Normalized returns a deep copy with every sentinel replaced by absent.
func (g Grades) Normalized() Grades {
	return Grades{
		VF:   NormalizeSentinel(g.VF),
		AVI:  NormalizeSentinel(g.AVI),
		AVII: NormalizeSentinel(g.AVII),
		VFE:  NormalizeSentinel(g.VFE),
	}
}

// Get returns the value stored in a component slot.
func (g Grades) Get(c Component) *float64 {
	switch c {
	case ComponentVF:
		return g.VF
	case ComponentAVI:
		return g.AVI
	case ComponentAVII:
		return g.AVII
	case ComponentVFE:
		return g.VFE
	}
	return nil
}

// Without returns a copy with the component cleared.
func (g Grades) Without(c Component) Grades {
	out := g.Normalized()
	switch c {
	case ComponentVF:
		out.VF = nil
	case ComponentAVI:
		out.AVI = nil
	case ComponentAVII:
		out.AVII = nil
	case ComponentVFE:
		out.VFE = nil
	}
	return out
}

// Validate enforces the component rules. Every rejection is an ErrConflict.
func (g Grades) Validate() error {
	if g.VF == nil {
		return shared.Conflict("assessment", "Validate", "VF is missing")
	}
	for _, v := range []*float64{g.VF, g.AVI, g.AVII, g.VFE} {
		if v != nil && (*v < MinGrade || *v > MaxGrade || math.IsNaN(*v)) {
			return shared.Conflict("assessment", "Validate", "Invalid size number")
		}
	}
	if g.AVII != nil && g.AVI == nil {
		return shared.Conflict("assessment", "Validate", "Invalid expected")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Status is the derived pass/fail classification.
type Status string

const (
	StatusApproved   Status = "approved"
	StatusFailed     Status = "failed"
	StatusRecovering Status = "recovering"
)

// Policy holds the institution's thresholds.
type Policy struct {
	// PassingAverage - partial average at or above which the student is approved.
	PassingAverage float64

	// RecoveryFloor - partial average below which no recovery exam is allowed.
	RecoveryFloor float64

	// RecoveryPassingAverage - final average needed after the recovery exam.
	RecoveryPassingAverage float64
}

// DefaultPolicy returns the thresholds used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		PassingAverage:         7,
		RecoveryFloor:          4,
		RecoveryPassingAverage: 5,
	}
}

// Result is the engine output.
type Result struct {
	Average      float64 `json:"average"`
	Status       Status  `json:"status"`
	IsRecovering bool    `json:"is_recovering"`
}

// Compute derives average, status and recovery flag. It is pure: callers
// validate first. The partial average is the mean of the present components
// among vf, avi and avii; vfe only counts for students inside the recovery band.
func (p Policy) Compute(g Grades) Result {
	g = g.Normalized()

	var sum float64
	var n int
	for _, v := range []*float64{g.VF, g.AVI, g.AVII} {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return Result{Average: 0, Status: StatusFailed}
	}
	partial := round2(sum / float64(n))

	switch {
	case partial >= p.PassingAverage:
		return Result{Average: partial, Status: StatusApproved}
	case partial < p.RecoveryFloor:
		return Result{Average: partial, Status: StatusFailed}
	}

	if g.VFE == nil {
		return Result{Average: partial, Status: StatusRecovering, IsRecovering: true}
	}

	final := round2((partial + *g.VFE) / 2)
	status := StatusFailed
	if final >= p.RecoveryPassingAverage {
		status = StatusApproved
	}
	return Result{Average: final, Status: status, IsRecovering: true}
}

// ComputeAverageAndStatus runs the engine with the default policy.
func ComputeAverageAndStatus(g Grades) Result {
	return DefaultPolicy().Compute(g)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
