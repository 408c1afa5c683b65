package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gocausal/domain/causal"
	"gocausal/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader loads tabular observational data from Excel or CSV files. The
// column-role schema always comes from the caller; nothing is inferred.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a reader for the given file, keyed on its extension
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// Read loads the file and maps columns to causal roles per the schema
func (r *DataReader) Read(ctx context.Context, schema causal.Schema) (*causal.Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	rows, err := r.readRows()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.InvalidInput("file must have a header row and at least one data row").
			WithDetail("rows", len(rows))
	}

	return buildDataset(rows, schema)
}

// readRows returns the raw string table including the header row
func (r *DataReader) readRows() ([][]string, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("data file %s", r.filePath))
	}

	switch r.fileType {
	case "csv":
		file, err := os.Open(r.filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open CSV file %s", r.filePath)
		}
		defer file.Close()
		rows, err := csv.NewReader(file).ReadAll()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read CSV file %s", r.filePath)
		}
		return rows, nil
	case "xlsx":
		f, err := excelize.OpenFile(r.filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open Excel file %s", r.filePath)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.InvalidInput("workbook has no sheets")
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read sheet %s", sheets[0])
		}
		return rows, nil
	default:
		return nil, errors.InvalidInput("unsupported file type").WithDetail("type", r.fileType)
	}
}

// buildDataset converts string rows to units per the schema. A missing or
// non-numeric cell is an error naming the offending row; there is no
// imputation.
func buildDataset(rows [][]string, schema causal.Schema) (*causal.Dataset, error) {
	header := rows[0]
	index := make(map[string]int, len(header))
	for j, name := range header {
		index[strings.TrimSpace(name)] = j
	}

	covIdx := make([]int, len(schema.Covariates))
	for k, name := range schema.Covariates {
		j, ok := index[name]
		if !ok {
			return nil, errors.InvalidInput("covariate column not found").WithDetail("column", name)
		}
		covIdx[k] = j
	}
	treatIdx, ok := index[schema.Treatment]
	if !ok {
		return nil, errors.InvalidInput("treatment column not found").WithDetail("column", schema.Treatment)
	}
	outIdx, ok := index[schema.Outcome]
	if !ok {
		return nil, errors.InvalidInput("outcome column not found").WithDetail("column", schema.Outcome)
	}

	units := make([]causal.Unit, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		cov := make([]float64, len(covIdx))
		for k, j := range covIdx {
			v, err := cellFloat(row, j)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %q", i, schema.Covariates[k])
			}
			cov[k] = v
		}
		tv, err := cellFloat(row, treatIdx)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d column %q", i, schema.Treatment)
		}
		if tv != 0 && tv != 1 {
			return nil, errors.InvalidInput("treatment must be coded 0 or 1").
				WithDetail("row", i).WithDetail("value", tv)
		}
		yv, err := cellFloat(row, outIdx)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d column %q", i, schema.Outcome)
		}
		units = append(units, causal.Unit{
			Index:      i - 1,
			Covariates: cov,
			Treatment:  int(tv),
			Outcome:    yv,
		})
	}

	ds := &causal.Dataset{Names: schema.Covariates, Units: units}
	if err := ds.Validate(); err != nil {
		if ds.Len() > 0 && (ds.TreatedCount() == 0 || ds.ControlCount() == 0) {
			return nil, errors.InsufficientData(err.Error())
		}
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return ds, nil
}

func cellFloat(row []string, j int) (float64, error) {
	if j >= len(row) {
		return 0, errors.InvalidInput("cell is missing")
	}
	s := strings.TrimSpace(row[j])
	if s == "" {
		return 0, errors.InvalidInput("cell is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.InvalidInput(fmt.Sprintf("cell %q is not numeric", s))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.InvalidInput("cell is not a finite number")
	}
	return v, nil
}
