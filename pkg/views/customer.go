package views

// CustomerRecord is the churn model's input contract: the 19 Telco customer attributes.
// Numeric fields are pointers so that "missing" fails validation instead of becoming zero.
type CustomerRecord struct {
	CustomerID       string   `json:"customer_id,omitempty" binding:"omitempty,max=50"`
	Gender           string   `json:"gender" binding:"required,oneof=Female Male"`
	SeniorCitizen    *int     `json:"SeniorCitizen" binding:"required,oneof=0 1"`
	Partner          string   `json:"Partner" binding:"required,oneof=Yes No"`
	Dependents       string   `json:"Dependents" binding:"required,oneof=Yes No"`
	Tenure           *int     `json:"tenure" binding:"required,min=0"`
	PhoneService     string   `json:"PhoneService" binding:"required,oneof=Yes No"`
	MultipleLines    string   `json:"MultipleLines" binding:"required,oneof='No phone service' No Yes"`
	InternetService  string   `json:"InternetService" binding:"required,oneof=DSL 'Fiber optic' No"`
	OnlineSecurity   string   `json:"OnlineSecurity" binding:"required,oneof=Yes No 'No internet service'"`
	OnlineBackup     string   `json:"OnlineBackup" binding:"required,oneof=Yes No 'No internet service'"`
	DeviceProtection string   `json:"DeviceProtection" binding:"required,oneof=Yes No 'No internet service'"`
	TechSupport      string   `json:"TechSupport" binding:"required,oneof=Yes No 'No internet service'"`
	StreamingTV      string   `json:"StreamingTV" binding:"required,oneof=Yes No 'No internet service'"`
	StreamingMovies  string   `json:"StreamingMovies" binding:"required,oneof=Yes No 'No internet service'"`
	Contract         string   `json:"Contract" binding:"required,oneof=Month-to-month 'One year' 'Two year'"`
	PaperlessBilling string   `json:"PaperlessBilling" binding:"required,oneof=Yes No"`
	PaymentMethod    string   `json:"PaymentMethod" binding:"required,oneof='Electronic check' 'Mailed check' 'Bank transfer (automatic)' 'Credit card (automatic)'"`
	MonthlyCharges   *float64 `json:"MonthlyCharges" binding:"required,min=0"`
	TotalCharges     *float64 `json:"TotalCharges" binding:"required,min=0"`
}

// Categorical returns the categorical attributes keyed by their model feature name.
func (c CustomerRecord) Categorical() map[string]string {
	senior := ""
	if c.SeniorCitizen != nil {
		if *c.SeniorCitizen == 1 {
			senior = "1"
		} else {
			senior = "0"
		}
	}
	return map[string]string{
		"gender":           c.Gender,
		"SeniorCitizen":    senior,
		"Partner":          c.Partner,
		"Dependents":       c.Dependents,
		"PhoneService":     c.PhoneService,
		"MultipleLines":    c.MultipleLines,
		"InternetService":  c.InternetService,
		"OnlineSecurity":   c.OnlineSecurity,
		"OnlineBackup":     c.OnlineBackup,
		"DeviceProtection": c.DeviceProtection,
		"TechSupport":      c.TechSupport,
		"StreamingTV":      c.StreamingTV,
		"StreamingMovies":  c.StreamingMovies,
		"Contract":         c.Contract,
		"PaperlessBilling": c.PaperlessBilling,
		"PaymentMethod":    c.PaymentMethod,
	}
}

// Numerical returns the numeric attributes keyed by their model feature name.
// Missing values are reported as zero.
func (c CustomerRecord) Numerical() map[string]float64 {
	out := map[string]float64{"tenure": 0, "MonthlyCharges": 0, "TotalCharges": 0}
	if c.Tenure != nil {
		out["tenure"] = float64(*c.Tenure)
	}
	if c.MonthlyCharges != nil {
		out["MonthlyCharges"] = *c.MonthlyCharges
	}
	if c.TotalCharges != nil {
		out["TotalCharges"] = *c.TotalCharges
	}
	return out
}
