package eventhandler

import (
	"strconv"
	"strings"

	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/student"
)

// Report text is pt-BR: decimal comma, São Paulo timestamps.

func formatNumber(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 2, 64), ".", ",", 1)
}

func formatGrade(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatNumber(*v)
}

func formatGrades(g assessment.Grades) string {
	return "VF " + formatGrade(g.VF) +
		" | AVI " + formatGrade(g.AVI) +
		" | AVII " + formatGrade(g.AVII) +
		" | VFE " + formatGrade(g.VFE)
}

func formatStatus(s assessment.Status) string {
	switch s {
	case assessment.StatusApproved:
		return "Aprovado"
	case assessment.StatusFailed:
		return "Reprovado"
	case assessment.StatusRecovering:
		return "Em recuperação"
	default:
		return string(s)
	}
}

func formatSnapshot(s assessment.Snapshot) string {
	return formatGrades(s.Grades) + "\nMédia: " + formatNumber(s.Average) + "\nSituação: " + formatStatus(s.Status)
}

func formatComponent(c assessment.Component) string {
	return strings.ToUpper(string(c))
}

func formatComponents(cs []assessment.Component) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = formatComponent(c)
	}
	return strings.Join(parts, ", ")
}

func formatPlacement(c student.PlacementChange) string {
	switch c {
	case student.PlacementEnroll:
		return "matriculado"
	case student.PlacementMove:
		return "transferido de polo"
	default:
		return "sem alteração de polo"
	}
}

func formatActive(active bool) string {
	if active {
		return "ativada"
	}
	return "desativada"
}
