package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/domain/shared"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParser_Assessments(t *testing.T) {
	buf := workbook(t,
		[]any{"Aluno", "Disciplina", "VF", "AVI", "AVII", "VFE"},
		[]any{"529.982.247-25", "Matemática Básica", "7,5", "8", "", ""},
		[]any{"", "", "", "", "", ""},
		[]any{"ana@example.com", "Física", "5", "-1", "", "6.25"},
	)

	sheet, err := NewParser(0).Assessments(buf)
	require.NoError(t, err)
	rows := sheet.Rows
	require.Len(t, rows, 2)

	assert.Equal(t, "529.982.247-25", rows[0].StudentKey)
	assert.Equal(t, "Matemática Básica", rows[0].DisciplineName)
	require.NotNil(t, rows[0].VF)
	assert.Equal(t, 7.5, *rows[0].VF)
	assert.Equal(t, 8.0, *rows[0].AVI)
	assert.Nil(t, rows[0].AVII)
	assert.Nil(t, rows[0].VFE)

	assert.Equal(t, -1.0, *rows[1].AVI)
	assert.Equal(t, 6.25, *rows[1].VFE)
	assert.Equal(t, []int{2, 4}, sheet.Lines)
}

func TestParser_Assessments_BadGradeReportsRow(t *testing.T) {
	buf := workbook(t,
		[]any{"aluno", "disciplina", "vf"},
		[]any{"52998224725", "Física", "7"},
		[]any{"11144477735", "Física", "sete"},
	)

	_, err := NewParser(0).Assessments(buf)
	require.Error(t, err)
	assert.True(t, shared.IsInvalidField(err))

	var rowErr *batch.RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 3, rowErr.Row)
}

func TestParser_RowErrorsUseSheetLines(t *testing.T) {
	buf := workbook(t,
		[]any{"aluno", "disciplina", "vf"},
		[]any{"52998224725", "Física", "7"},
		[]any{"", "", ""},
		[]any{"", "", ""},
		[]any{"11144477735", "Física", "dez"},
	)

	_, err := NewParser(0).Assessments(buf)
	var rowErr *batch.RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 5, rowErr.Row)
}

func TestParser_MissingColumn(t *testing.T) {
	buf := workbook(t,
		[]any{"Aluno", "VF"},
		[]any{"52998224725", "7"},
	)

	_, err := NewParser(0).Assessments(buf)
	require.Error(t, err)
	assert.True(t, shared.IsInvalidField(err))
	assert.Contains(t, err.Error(), "disciplina")
}

func TestParser_GradeRemovals(t *testing.T) {
	buf := workbook(t,
		[]any{"Aluno", "Disciplina", "Remover AVI", "Remover AVII", "Remover VFE"},
		[]any{"52998224725", "Física", "", "x", "Sim"},
	)

	sheet, err := NewParser(0).GradeRemovals(buf)
	require.NoError(t, err)
	rows := sheet.Rows
	require.Len(t, rows, 1)
	assert.False(t, rows[0].RemoveAVI)
	assert.True(t, rows[0].RemoveAVII)
	assert.True(t, rows[0].RemoveVFE)
}

func TestParser_Students(t *testing.T) {
	buf := workbook(t,
		[]any{"Nome", "E-mail", "CPF", "Data de Nascimento", "Polo"},
		[]any{"Ana Souza", "ana@example.com", "52998224725", "10/05/1990", "Polo Norte"},
	)

	sheet, err := NewParser(0).Students(buf)
	require.NoError(t, err)
	rows := sheet.Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana Souza", rows[0].Name)
	assert.Equal(t, "ana@example.com", rows[0].Email)
	assert.Equal(t, "52998224725", rows[0].CPF)
	assert.Equal(t, "10/05/1990", rows[0].Birthday)
	assert.Equal(t, "Polo Norte", rows[0].PoleName)
}

func TestParser_StudentUpdates_OptionalColumns(t *testing.T) {
	buf := workbook(t,
		[]any{"CPF", "Polo"},
		[]any{"52998224725", "Polo Sul"},
	)

	sheet, err := NewParser(0).StudentUpdates(buf)
	require.NoError(t, err)
	rows := sheet.Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "52998224725", rows[0].StudentKey)
	assert.Equal(t, "Polo Sul", rows[0].PoleName)
	assert.Empty(t, rows[0].Name)
}

func TestParser_RowLimit(t *testing.T) {
	rows := [][]any{{"Aluno", "Disciplina", "VF"}}
	for i := range 3 {
		rows = append(rows, []any{fmt.Sprintf("aluno%d@example.com", i), "Física", "7"})
	}

	_, err := NewParser(2).Assessments(workbook(t, rows...))
	require.Error(t, err)
	assert.True(t, shared.IsInvalidField(err))
}

func TestParser_NotAWorkbook(t *testing.T) {
	_, err := NewParser(0).Students(bytes.NewBufferString("nome,email\n"))
	require.Error(t, err)
	assert.True(t, shared.IsInvalidField(err))
}
