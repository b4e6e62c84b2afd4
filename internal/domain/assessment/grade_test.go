package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

func TestGrades_Validate(t *testing.T) {
	tests := []struct {
		name    string
		grades  Grades
		message string
	}{
		{"vf only", Grades{VF: Score(5)}, ""},
		{"all components", Grades{VF: Score(5), AVI: Score(6), AVII: Score(7), VFE: Score(8)}, ""},
		{"bounds are inclusive", Grades{VF: Score(0), AVI: Score(10)}, ""},
		{"missing vf", Grades{AVI: Score(5)}, "VF is missing"},
		{"vf above range", Grades{VF: Score(10.5)}, "Invalid size number"},
		{"avi below range", Grades{VF: Score(5), AVI: Score(-0.5)}, "Invalid size number"},
		{"vfe above range", Grades{VF: Score(5), VFE: Score(11)}, "Invalid size number"},
		{"avii without avi", Grades{VF: Score(5), AVII: Score(5)}, "Invalid expected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.grades.Validate()
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, shared.IsConflict(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNormalizeSentinel(t *testing.T) {
	assert.Nil(t, NormalizeSentinel(nil))
	assert.Nil(t, NormalizeSentinel(Score(Sentinel)))

	v := Score(3)
	got := NormalizeSentinel(v)
	require.NotNil(t, got)
	assert.Equal(t, 3.0, *got)

	*got = 9
	assert.Equal(t, 3.0, *v, "normalized value must be a copy")
}

func TestPolicy_Compute(t *testing.T) {
	tests := []struct {
		name       string
		grades     Grades
		average    float64
		status     Status
		recovering bool
	}{
		{"approved on partial", Grades{VF: Score(8), AVI: Score(7)}, 7.5, StatusApproved, false},
		{"exactly passing", Grades{VF: Score(7)}, 7, StatusApproved, false},
		{"in recovery without vfe", Grades{VF: Score(5)}, 5, StatusRecovering, true},
		{"rounded partial", Grades{VF: Score(7), AVI: Score(7), AVII: Score(6)}, 6.67, StatusRecovering, true},
		{"recovered with vfe", Grades{VF: Score(5), AVI: Score(6), VFE: Score(6)}, 5.75, StatusApproved, true},
		{"failed recovery", Grades{VF: Score(5), AVI: Score(4), VFE: Score(4)}, 4.25, StatusFailed, true},
		{"below floor ignores vfe", Grades{VF: Score(3), AVI: Score(2), VFE: Score(10)}, 2.5, StatusFailed, false},
		{"sentinel excluded", Grades{VF: Score(8), AVI: Score(Sentinel)}, 8, StatusApproved, false},
		{"nothing present", Grades{}, 0, StatusFailed, false},
	}

	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := p.Compute(tt.grades)
			assert.InDelta(t, tt.average, r.Average, 0.001)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.recovering, r.IsRecovering)
		})
	}
}

func TestPolicy_Compute_CustomThresholds(t *testing.T) {
	p := Policy{PassingAverage: 6, RecoveryFloor: 3, RecoveryPassingAverage: 6}

	assert.Equal(t, StatusApproved, p.Compute(Grades{VF: Score(6)}).Status)
	assert.Equal(t, StatusRecovering, p.Compute(Grades{VF: Score(3)}).Status)
	assert.Equal(t, StatusFailed, p.Compute(Grades{VF: Score(4), VFE: Score(7)}).Status)
}

func TestComputeAverageAndStatus_UsesDefaultPolicy(t *testing.T) {
	g := Grades{VF: Score(5), AVI: Score(6), VFE: Score(6)}
	assert.Equal(t, DefaultPolicy().Compute(g), ComputeAverageAndStatus(g))
}
