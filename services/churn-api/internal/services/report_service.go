package services

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/scoring"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"go.uber.org/zap"
)

// Report is a rendered PDF ready to be served as an attachment.
type Report struct {
	Filename string
	Content  []byte
}

type ReportService interface {
	Generate(ctx context.Context, traceID string, data map[string]any) (Report, error)
}

type ReportServiceImpl struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewReportService(logger *zap.Logger) ReportService {
	return &ReportServiceImpl{logger: logger, now: time.Now}
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ReportFilename follows the ChurnReport_<customer_id>.pdf convention.
func ReportFilename(customerID string) string {
	if utils.IsEmpty(customerID) {
		customerID = pkg.UnknownCustomer
	}
	return "ChurnReport_" + unsafeFilenameChars.ReplaceAllString(customerID, "_") + ".pdf"
}

// attribute keys echoed by the client alongside the prediction, in display order
var reportAttributes = []string{
	"gender", "SeniorCitizen", "Partner", "Dependents", "tenure", "PhoneService", "MultipleLines",
	"InternetService", "OnlineSecurity", "OnlineBackup", "DeviceProtection", "TechSupport",
	"StreamingTV", "StreamingMovies", "Contract", "PaperlessBilling", "PaymentMethod",
	"MonthlyCharges", "TotalCharges",
}

type reportFactor struct {
	feature string
	impact  float64
}

func (r *ReportServiceImpl) Generate(ctx context.Context, traceID string, data map[string]any) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	customerID := stringField(data, "customer_id")
	if utils.IsEmpty(customerID) {
		customerID = pkg.UnknownCustomer
	}
	prob, hasProb := floatField(data, "churn_probability")
	if hasProb && (prob < 0 || prob > 1) {
		return Report{}, pkg.NewAppError(pkg.ErrInvalidInputCode, "churn_probability must be between 0 and 1", nil)
	}
	risk := stringField(data, "risk_level")
	factors := explanationFields(data)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Churn Report "+customerID, true)
	pdf.SetAuthor("ChurnShield", false)
	pdf.SetCreationDate(r.now())
	pdf.SetMargins(18, 18, 18)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("ChurnShield Pro | Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// header band
	pdf.SetFillColor(15, 23, 42)
	pdf.Rect(0, 0, 210, 34, "F")
	pdf.SetY(10)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 9, "Customer Churn Risk Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Customer %s  |  Generated %s", customerID, r.now().UTC().Format("2006-01-02 15:04 UTC"))), "", 1, "L", false, 0, "")
	pdf.Ln(12)

	// summary
	pdf.SetTextColor(15, 23, 42)
	section(pdf, "Prediction Summary")
	probText := "n/a"
	if hasProb {
		probText = fmt.Sprintf("%d%%", int(math.Round(prob*100)))
	}
	keyValue(pdf, tr, "Churn probability", probText)
	if risk != "" {
		red, green, blue := riskColor(risk)
		pdf.SetTextColor(red, green, blue)
		keyValue(pdf, tr, "Risk level", risk)
		pdf.SetTextColor(15, 23, 42)
	}
	if pred, ok := data["churn_prediction"].(bool); ok {
		verdict := "Likely to stay"
		if pred {
			verdict = "Likely to churn"
		}
		keyValue(pdf, tr, "Prediction", verdict)
	}
	if v := stringField(data, "model_version"); v != "" {
		keyValue(pdf, tr, "Model version", v)
	}
	pdf.Ln(4)

	if len(factors) > 0 {
		section(pdf, "Key Risk Factors")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(241, 245, 249)
		pdf.CellFormat(90, 7, "Feature", "B", 0, "L", true, 0, "")
		pdf.CellFormat(35, 7, "Impact", "B", 0, "R", true, 0, "")
		pdf.CellFormat(49, 7, "Effect", "B", 1, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, f := range factors {
			effect := "Reduces risk"
			if f.impact > 0 {
				effect = "Increases risk"
			}
			pdf.CellFormat(90, 7, tr(f.feature), "", 0, "L", false, 0, "")
			pdf.CellFormat(35, 7, fmt.Sprintf("%+.4f", f.impact), "", 0, "R", false, 0, "")
			pdf.CellFormat(49, 7, effect, "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	var attrs [][2]string
	for _, key := range reportAttributes {
		if v, ok := data[key]; ok && v != nil {
			attrs = append(attrs, [2]string{key, fmt.Sprint(v)})
		}
	}
	if len(attrs) > 0 {
		section(pdf, "Customer Profile")
		for _, kv := range attrs {
			keyValue(pdf, tr, kv[0], kv[1])
		}
		pdf.Ln(4)
	}

	section(pdf, "Recommended Actions")
	pdf.SetFont("Helvetica", "", 10)
	for _, rec := range recommendations(risk) {
		pdf.MultiCell(0, 6, tr("- "+rec), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Report{}, pkg.NewAppError(pkg.ErrReportCode, "", err)
	}
	r.logger.Info("report_generated",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.CustomerId, customerID),
		zap.Int("bytes", buf.Len()))
	return Report{Filename: ReportFilename(customerID), Content: buf.Bytes()}, nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(203, 213, 225)
	pdf.Line(pdf.GetX(), pdf.GetY(), 192, pdf.GetY())
	pdf.Ln(2)
}

func keyValue(pdf *fpdf.Fpdf, tr func(string) string, key, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(55, 6, tr(key), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

func riskColor(risk string) (int, int, int) {
	switch pkg.RiskLevel(risk) {
	case pkg.RiskLevelHigh:
		return 225, 29, 72
	case pkg.RiskLevelMedium:
		return 217, 119, 6
	default:
		return 5, 150, 105
	}
}

func recommendations(risk string) []string {
	switch pkg.RiskLevel(risk) {
	case pkg.RiskLevelHigh:
		return []string{
			"Contact the customer within 48 hours with a retention offer.",
			"Offer a discounted one or two year contract in place of month-to-month billing.",
			"Review recent support tickets and service quality issues.",
		}
	case pkg.RiskLevelMedium:
		return []string{
			"Enroll the customer in a loyalty or bundle promotion.",
			"Suggest automatic payment methods and add-on services such as tech support.",
		}
	default:
		return []string{
			"No immediate action required; keep in regular engagement campaigns.",
		}
	}
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func floatField(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// explanationFields reads explanations[] ({feature, impact}) sorted by absolute impact,
// keeping at most scoring.DefaultTopN.
func explanationFields(data map[string]any) []reportFactor {
	raw, ok := data["explanations"].([]any)
	if !ok {
		return nil
	}
	out := make([]reportFactor, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		impact, ok := floatField(m, "impact")
		if !ok {
			continue
		}
		out = append(out, reportFactor{feature: stringField(m, "feature"), impact: impact})
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].impact) > math.Abs(out[j].impact) })
	if len(out) > scoring.DefaultTopN {
		out = out[:scoring.DefaultTopN]
	}
	return out
}
