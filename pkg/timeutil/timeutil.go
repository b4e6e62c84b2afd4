// Package timeutil provides São Paulo timezone helpers. Audit reports and
// course deadlines are expressed in Brasília time (UTC-3, no DST since 2019).
package timeutil

import "time"

// SaoPauloTZ is America/Sao_Paulo. A fixed zone avoids depending on tzdata in
// minimal containers.
var SaoPauloTZ = time.FixedZone("America/Sao_Paulo", -3*60*60)

const (
	// LayoutDate is the Brazilian date layout.
	LayoutDate = "02/01/2006"
	// LayoutDateTime is the layout used in audit reports.
	LayoutDateTime = "02/01/2006 às 15:04"
)

// Now returns the current time in São Paulo.
func Now() time.Time {
	return time.Now().In(SaoPauloTZ)
}

// ToSaoPaulo converts a time to São Paulo.
func ToSaoPaulo(t time.Time) time.Time {
	return t.In(SaoPauloTZ)
}

// Date creates midnight of the given day in São Paulo.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, SaoPauloTZ)
}

// StartOfDay returns 00:00 of t's day in São Paulo.
func StartOfDay(t time.Time) time.Time {
	t = t.In(SaoPauloTZ)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, SaoPauloTZ)
}

// EndOfDay returns the last nanosecond of t's day in São Paulo.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FormatBR formats t as "dd/mm/yyyy às hh:mm" in São Paulo.
func FormatBR(t time.Time) string {
	return t.In(SaoPauloTZ).Format(LayoutDateTime)
}

// FormatDateBR formats t as "dd/mm/yyyy" in São Paulo.
func FormatDateBR(t time.Time) string {
	return t.In(SaoPauloTZ).Format(LayoutDate)
}

// ParseDateBR parses "dd/mm/yyyy" as midnight in São Paulo.
func ParseDateBR(value string) (time.Time, error) {
	return time.ParseInLocation(LayoutDate, value, SaoPauloTZ)
}
