// Package spreadsheet turns uploaded xlsx files into batch rows. The first
// sheet is read; its first row is the header. Header names are matched
// accent and case insensitively, in Portuguese or English.
package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// column lists the accepted header spellings of one logical column, already
// in NormalizeKey form.
type column []string

var (
	colStudent    = column{"aluno", "student", "cpf", "email", "e-mail"}
	colDiscipline = column{"disciplina", "discipline"}
	colVF         = column{"vf"}
	colAVI        = column{"avi", "av i", "av1"}
	colAVII       = column{"avii", "av ii", "av2"}
	colVFE        = column{"vfe"}

	colRemoveAVI  = column{"remover avi", "remove avi", "remove_avi"}
	colRemoveAVII = column{"remover avii", "remove avii", "remove_avii"}
	colRemoveVFE  = column{"remover vfe", "remove vfe", "remove_vfe"}

	colName     = column{"nome", "name"}
	colEmail    = column{"email", "e-mail"}
	colCPF      = column{"cpf"}
	colBirthday = column{"nascimento", "data de nascimento", "birthday"}
	colPole     = column{"polo", "pole"}
	colKey      = column{"cpf", "aluno", "student"}
)

// Sheet is the parsed content of an upload. Lines[i] is the worksheet line
// of Rows[i], counting the header as line 1.
type Sheet[T any] struct {
	Rows  []T
	Lines []int
}

// Parser reads batch spreadsheets.
type Parser struct {
	maxRows int
}

// DefaultMaxRows bounds how many data rows one upload may carry.
const DefaultMaxRows = 5000

// NewParser creates a parser. maxRows <= 0 selects DefaultMaxRows.
func NewParser(maxRows int) *Parser {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Parser{maxRows: maxRows}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW KINDS
// ══════════════════════════════════════════════════════════════════════════════

// Assessments parses {aluno, disciplina, vf, avi, avii, vfe}. Empty grade
// cells are absent; -1 is kept as the exclusion sentinel.
func (p *Parser) Assessments(r io.Reader) (Sheet[command.AssessmentRow], error) {
	return parse(p, r, []column{colStudent, colDiscipline, colVF},
		func(s sheetRow) (command.AssessmentRow, error) {
			var (
				row command.AssessmentRow
				err error
			)
			row.StudentKey = s.get(colStudent)
			row.DisciplineName = s.get(colDiscipline)
			if row.VF, err = s.grade(colVF); err != nil {
				return row, err
			}
			if row.AVI, err = s.grade(colAVI); err != nil {
				return row, err
			}
			if row.AVII, err = s.grade(colAVII); err != nil {
				return row, err
			}
			row.VFE, err = s.grade(colVFE)
			return row, err
		})
}

// GradeRemovals parses {aluno, disciplina, remover avi, remover avii,
// remover vfe}; a marked cell ("x", "sim", "1", "true") selects the grade.
func (p *Parser) GradeRemovals(r io.Reader) (Sheet[command.GradeRemovalRow], error) {
	return parse(p, r, []column{colStudent, colDiscipline},
		func(s sheetRow) (command.GradeRemovalRow, error) {
			return command.GradeRemovalRow{
				StudentKey:     s.get(colStudent),
				DisciplineName: s.get(colDiscipline),
				RemoveAVI:      s.flag(colRemoveAVI),
				RemoveAVII:     s.flag(colRemoveAVII),
				RemoveVFE:      s.flag(colRemoveVFE),
			}, nil
		})
}

// Students parses {nome, email, cpf, nascimento, polo}.
func (p *Parser) Students(r io.Reader) (Sheet[command.StudentRow], error) {
	return parse(p, r, []column{colName, colEmail, colCPF, colBirthday, colPole},
		func(s sheetRow) (command.StudentRow, error) {
			return command.StudentRow{
				Name:     s.get(colName),
				Email:    s.get(colEmail),
				CPF:      s.get(colCPF),
				Birthday: s.get(colBirthday),
				PoleName: s.get(colPole),
			}, nil
		})
}

// StudentUpdates parses {cpf, nome, email, nascimento, polo}. The cpf column
// identifies the student; the other cells are optional new values.
func (p *Parser) StudentUpdates(r io.Reader) (Sheet[command.StudentUpdateRow], error) {
	return parse(p, r, []column{colKey},
		func(s sheetRow) (command.StudentUpdateRow, error) {
			return command.StudentUpdateRow{
				StudentKey: s.get(colKey),
				Name:       s.get(colName),
				Email:      s.get(colEmail),
				Birthday:   s.get(colBirthday),
				PoleName:   s.get(colPole),
			}, nil
		})
}

// ══════════════════════════════════════════════════════════════════════════════
// SHEET READING
// ══════════════════════════════════════════════════════════════════════════════

func parse[T any](p *Parser, r io.Reader, required []column, build func(sheetRow) (T, error)) (Sheet[T], error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Sheet[T]{}, fmt.Errorf("read spreadsheet: %w", err)
	}

	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Sheet[T]{}, shared.WrapError("spreadsheet", "Parse", shared.ErrInvalidField, "invalid file", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return Sheet[T]{}, shared.InvalidField("spreadsheet", "Parse", "file")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return Sheet[T]{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return Sheet[T]{}, shared.InvalidField("spreadsheet", "Parse", "rows")
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		key := shared.NormalizeKey(name)
		if _, dup := header[key]; !dup && key != "" {
			header[key] = i
		}
	}
	for _, col := range required {
		if _, ok := find(header, col); !ok {
			return Sheet[T]{}, shared.InvalidField("spreadsheet", "Parse", "column "+col[0])
		}
	}

	var (
		out  Sheet[T]
		errs batch.Errors
	)
	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		if len(out.Rows)+len(errs) >= p.maxRows {
			return Sheet[T]{}, shared.InvalidField("spreadsheet", "Parse", "rows")
		}

		line := i + 2
		v, err := build(sheetRow{header: header, cells: cells})
		errs.Add(line, err)
		if err == nil {
			out.Rows = append(out.Rows, v)
			out.Lines = append(out.Lines, line)
		}
	}
	if err := errs.Err(); err != nil {
		return Sheet[T]{}, err
	}
	if len(out.Rows) == 0 {
		return Sheet[T]{}, shared.InvalidField("spreadsheet", "Parse", "rows")
	}
	return out, nil
}

func find(header map[string]int, col column) (int, bool) {
	for _, name := range col {
		if i, ok := header[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type sheetRow struct {
	header map[string]int
	cells  []string
}

func (s sheetRow) get(col column) string {
	i, ok := find(s.header, col)
	if !ok || i >= len(s.cells) {
		return ""
	}
	return strings.TrimSpace(s.cells[i])
}

// grade accepts "7.5" and "7,5". An empty cell is absent.
func (s sheetRow) grade(col column) (*float64, error) {
	raw := s.get(col)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil, shared.InvalidField("spreadsheet", "Parse", strings.ToUpper(col[0]))
	}
	return &v, nil
}

func (s sheetRow) flag(col column) bool {
	switch shared.NormalizeKey(s.get(col)) {
	case "x", "sim", "s", "1", "true", "yes":
		return true
	}
	return false
}
