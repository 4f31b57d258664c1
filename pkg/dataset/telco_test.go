package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `customerID,gender,SeniorCitizen,Partner,Dependents,tenure,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,MonthlyCharges,TotalCharges,Churn
7590-VHVEG,Female,0,Yes,No,1,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,29.85,29.85,No
5575-GNVDE,Male,0,No,No,34,Yes,No,DSL,Yes,No,Yes,No,No,No,One year,No,Mailed check,56.95,1889.5,No
3668-QPYBK,Male,0,No,No,2,Yes,No,DSL,Yes,Yes,No,No,No,No,Month-to-month,Yes,Mailed check,53.85,108.15,Yes
4472-LVYGI,Female,0,Yes,Yes,0,No,No phone service,DSL,Yes,No,Yes,Yes,Yes,No,Two year,Yes,Bank transfer (automatic),52.55, ,No
9237-HQITU,Female,0,No,No,2,Yes,No,Fiber optic,No,No,No,No,No,No,Month-to-month,Yes,Electronic check,70.70,151.65,Yes
`

func TestRead_ParsesRows(t *testing.T) {
	rows, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 5)

	first := rows[0].Record
	assert.Equal(t, "7590-VHVEG", first.CustomerID)
	assert.Equal(t, "No phone service", first.MultipleLines)
	assert.Equal(t, 1, *first.Tenure)
	assert.Equal(t, 29.85, *first.MonthlyCharges)
	assert.False(t, rows[0].Churned)
	assert.True(t, rows[2].Churned)

	// blank TotalCharges on a zero-tenure customer
	assert.Equal(t, 0.0, *rows[3].Record.TotalCharges)
	assert.Equal(t, "Bank transfer (automatic)", rows[3].Record.PaymentMethod)
}

func TestSummarize(t *testing.T) {
	rows, err := Read(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	s := Summarize(rows)
	assert.Equal(t, int64(5), s.TotalCustomers)
	assert.Equal(t, int64(2), s.ChurnedCustomers)
	assert.Equal(t, 40.0, s.ChurnRate)
	assert.InDelta(t, 124.55, s.MonthlyRevenueAtRisk, 1e-9)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.Error(t, err)

	_, err = Read(strings.NewReader("customerID,gender\nx,Male\n"))
	assert.ErrorContains(t, err, "missing column")

	bad := strings.Replace(sampleCSV, ",34,", ",thirty,", 1)
	_, err = Read(strings.NewReader(bad))
	assert.ErrorContains(t, err, "line 3")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telco.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))
	rows, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	_, err = LoadFile(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
