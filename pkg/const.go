package pkg

const (
	HeaderTraceId   string = "X-Trace-Id"
	HeaderRequestId string = "X-Request-Id"
)

const (
	TraceId    string = "trace_id"
	RequestId  string = "request_id"
	CustomerId string = "customer_id"
	Username   string = "username"
	Claims     string = "claims"
)

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low"
	RiskLevelMedium RiskLevel = "Medium"
	RiskLevelHigh   RiskLevel = "High"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// UnknownCustomer is used when a prediction request carries no customer id.
const UnknownCustomer = "Unknown"
