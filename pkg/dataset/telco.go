// Package dataset reads the Telco customer churn CSV used for training and dashboard statistics.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
)

var requiredColumns = []string{
	"customerID", "gender", "SeniorCitizen", "Partner", "Dependents", "tenure",
	"PhoneService", "MultipleLines", "InternetService", "OnlineSecurity", "OnlineBackup",
	"DeviceProtection", "TechSupport", "StreamingTV", "StreamingMovies", "Contract",
	"PaperlessBilling", "PaymentMethod", "MonthlyCharges", "TotalCharges", "Churn",
}

// Row is one customer with its observed churn label.
type Row struct {
	Record  views.CustomerRecord
	Churned bool
}

// Summary aggregates the dataset for the dashboard.
type Summary struct {
	TotalCustomers       int64
	ChurnedCustomers     int64
	ChurnRate            float64 // percent, one decimal
	MonthlyRevenueAtRisk float64 // sum of MonthlyCharges of churned customers
}

// LoadFile reads the CSV at path.
func LoadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses the Telco CSV. Blank TotalCharges (brand new customers) are read as 0.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\uFEFF")] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("dataset is missing column %s", c)
		}
	}

	var rows []Row
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRow(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string, idx map[string]int) (Row, error) {
	get := func(col string) string { return strings.TrimSpace(rec[idx[col]]) }

	senior, err := strconv.Atoi(get("SeniorCitizen"))
	if err != nil {
		return Row{}, fmt.Errorf("SeniorCitizen: %w", err)
	}
	tenure, err := strconv.Atoi(get("tenure"))
	if err != nil {
		return Row{}, fmt.Errorf("tenure: %w", err)
	}
	monthly, err := strconv.ParseFloat(get("MonthlyCharges"), 64)
	if err != nil {
		return Row{}, fmt.Errorf("MonthlyCharges: %w", err)
	}
	total := 0.0
	if s := get("TotalCharges"); !utils.IsEmpty(s) {
		if total, err = strconv.ParseFloat(s, 64); err != nil {
			return Row{}, fmt.Errorf("TotalCharges: %w", err)
		}
	}

	return Row{
		Record: views.CustomerRecord{
			CustomerID:       get("customerID"),
			Gender:           get("gender"),
			SeniorCitizen:    &senior,
			Partner:          get("Partner"),
			Dependents:       get("Dependents"),
			Tenure:           &tenure,
			PhoneService:     get("PhoneService"),
			MultipleLines:    get("MultipleLines"),
			InternetService:  get("InternetService"),
			OnlineSecurity:   get("OnlineSecurity"),
			OnlineBackup:     get("OnlineBackup"),
			DeviceProtection: get("DeviceProtection"),
			TechSupport:      get("TechSupport"),
			StreamingTV:      get("StreamingTV"),
			StreamingMovies:  get("StreamingMovies"),
			Contract:         get("Contract"),
			PaperlessBilling: get("PaperlessBilling"),
			PaymentMethod:    get("PaymentMethod"),
			MonthlyCharges:   &monthly,
			TotalCharges:     &total,
		},
		Churned: strings.EqualFold(get("Churn"), "Yes"),
	}, nil
}

// Summarize computes dashboard aggregates over rows.
func Summarize(rows []Row) Summary {
	s := Summary{TotalCustomers: int64(len(rows))}
	for _, r := range rows {
		if !r.Churned {
			continue
		}
		s.ChurnedCustomers++
		if r.Record.MonthlyCharges != nil {
			s.MonthlyRevenueAtRisk += *r.Record.MonthlyCharges
		}
	}
	if s.TotalCustomers > 0 {
		s.ChurnRate = utils.Round(float64(s.ChurnedCustomers)/float64(s.TotalCustomers)*100, 1)
	}
	s.MonthlyRevenueAtRisk = utils.Round(s.MonthlyRevenueAtRisk, 2)
	return s
}
