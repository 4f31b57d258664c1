package services

import "github.com/nimeshabuddhika/churnshield/pkg/views"

// featureCatalog describes the model inputs shown on the dashboard.
var featureCatalog = views.FeatureCatalog{
	Categorical: []views.FeatureDescriptor{
		{Name: "gender", Desc: "Customer gender", Importance: "Trivial"},
		{Name: "SeniorCitizen", Desc: "Whether the customer is a senior citizen", Importance: "High"},
		{Name: "Partner", Desc: "Whether the customer has a partner", Importance: "Medium"},
		{Name: "Dependents", Desc: "Whether the customer has dependents", Importance: "Medium"},
		{Name: "InternetService", Desc: "Customer's internet service provider", Importance: "Extreme"},
		{Name: "Contract", Desc: "The contract term of the customer", Importance: "Extreme"},
		{Name: "PaymentMethod", Desc: "The customer's payment method", Importance: "High"},
	},
	Numerical: []views.FeatureDescriptor{
		{Name: "tenure", Desc: "Number of months the customer has stayed with the company", Importance: "Extreme"},
		{Name: "MonthlyCharges", Desc: "The amount charged to the customer monthly", Importance: "High"},
		{Name: "TotalCharges", Desc: "The total amount charged to the customer", Importance: "Medium"},
	},
}

// FeatureCatalog returns a copy so callers cannot mutate the shared catalogue.
func FeatureCatalog() views.FeatureCatalog {
	return views.FeatureCatalog{
		Categorical: append([]views.FeatureDescriptor(nil), featureCatalog.Categorical...),
		Numerical:   append([]views.FeatureDescriptor(nil), featureCatalog.Numerical...),
	}
}
