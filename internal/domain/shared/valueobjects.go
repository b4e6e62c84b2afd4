package shared

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/polos-ead/academic-records/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// CPF (Cadastro de Pessoas Físicas)
// ═══════════════════════════════════════════════════════════════════════════

// CPF is a Brazilian taxpayer number stored as its 11 digits.
type CPF string

var nonDigits = regexp.MustCompile(`\D`)

// NewCPF strips punctuation and validates the check digits.
func NewCPF(raw string) (CPF, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if !validCPFDigits(digits) {
		return "", InvalidField("shared", "NewCPF", "CPF")
	}
	return CPF(digits), nil
}

// String returns the 11 digits.
func (c CPF) String() string {
	return string(c)
}

// Formatted returns the CPF as 000.000.000-00.
func (c CPF) Formatted() string {
	s := string(c)
	if len(s) != 11 {
		return s
	}
	return s[0:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:11]
}

// DefaultPassword is the initial credential handed to a student created in bulk.
// It must be hashed before it is stored.
func (c CPF) DefaultPassword() string {
	return string(c)
}

func validCPFDigits(d string) bool {
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}

	check := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		r := (sum * 10) % 11
		if r == 10 {
			r = 0
		}
		return byte(r) + '0'
	}

	return check(9) == d[9] && check(10) == d[10]
}

// ═══════════════════════════════════════════════════════════════════════════
// Email
// ═══════════════════════════════════════════════════════════════════════════

// Email is a normalized (trimmed, lowercase) e-mail address.
type Email string

// NewEmail validates and normalizes an address.
func NewEmail(raw string) (Email, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@"):], ".") {
		return "", InvalidField("shared", "NewEmail", "email")
	}
	return Email(s), nil
}

// String returns the address.
func (e Email) String() string {
	return string(e)
}

// ═══════════════════════════════════════════════════════════════════════════
// Name
// ═══════════════════════════════════════════════════════════════════════════

// Name is a person's full name, title-cased.
type Name string

const (
	minNameLength = 3
	maxNameLength = 120
)

var titleCaser = cases.Title(language.BrazilianPortuguese)

// NewName validates that the name is made of letters, spaces, apostrophes and
// hyphens, then title-cases it.
func NewName(raw string) (Name, error) {
	s := strings.Join(strings.Fields(raw), " ")
	n := len([]rune(s))
	if n < minNameLength || n > maxNameLength {
		return "", InvalidField("shared", "NewName", "name")
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' && r != '\'' && r != '-' {
			return "", InvalidField("shared", "NewName", "name")
		}
	}
	return Name(titleCaser.String(s)), nil
}

// String returns the name.
func (n Name) String() string {
	return string(n)
}

// ═══════════════════════════════════════════════════════════════════════════
// Birthday
// ═══════════════════════════════════════════════════════════════════════════

const maxAgeYears = 120

var birthdayParsers = []func(string) (time.Time, error){
	timeutil.ParseDateBR,
	func(v string) (time.Time, error) { return time.Parse(time.DateOnly, v) },
	func(v string) (time.Time, error) { return time.Parse(time.RFC3339, v) },
}

// ParseBirthday accepts dd/mm/yyyy, yyyy-mm-dd or RFC3339 and rejects dates in
// the future or implausibly old.
func ParseBirthday(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, parse := range birthdayParsers {
		t, err := parse(raw)
		if err != nil {
			continue
		}
		if t.After(now) || t.Before(now.AddDate(-maxAgeYears, 0, 0)) {
			break
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, InvalidField("shared", "ParseBirthday", "birthday")
}

// ═══════════════════════════════════════════════════════════════════════════
// Natural keys
// ═══════════════════════════════════════════════════════════════════════════

// NormalizeKey folds a human-entered name (discipline, pole) into a lookup key:
// accents stripped, case folded, whitespace collapsed. "Matemática  Básica"
// and "matematica basica" share a key.
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}
