package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/i18n"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// ReportService builds grouped inventory reports and renders them
type ReportService struct {
	itemRepo      *repository.ItemRepository
	hierarchyRepo *repository.HierarchyRepository
	logger        *logger.Logger
	now           func() time.Time
}

// NewReportService creates a new report service
func NewReportService(itemRepo *repository.ItemRepository, hierarchyRepo *repository.HierarchyRepository, log *logger.Logger) *ReportService {
	return &ReportService{
		itemRepo:      itemRepo,
		hierarchyRepo: hierarchyRepo,
		logger:        log,
		now:           time.Now,
	}
}

// Build loads the tenant's inventory and groups it vehicle > case > module.
func (s *ReportService) Build(ctx context.Context, reportType string) (*domain.Report, error) {
	t, err := domain.ParseReportType(reportType)
	if err != nil {
		return nil, errors.NewWithKey("INVALID_REPORT_TYPE", "errors.inventory.invalid_report_type",
			http.StatusBadRequest, map[string]string{"type": reportType})
	}

	var in domain.ReportInput
	if in.Items, err = s.itemRepo.ListAll(ctx); err != nil {
		return nil, err
	}
	if in.Modules, err = s.hierarchyRepo.ListModuleBags(ctx); err != nil {
		return nil, err
	}
	if in.Cases, err = s.hierarchyRepo.ListCases(ctx); err != nil {
		return nil, err
	}
	if in.Vehicles, err = s.hierarchyRepo.ListVehicles(ctx); err != nil {
		return nil, err
	}

	report := domain.BuildReport(in, t, s.now())
	return &report, nil
}

const reportHTML = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;width:100%;margin-bottom:1.5rem}
th,td{border:1px solid #ccc;padding:4px 8px;text-align:left}
th{background:#f3f3f3}
.destructive{color:#b00020;font-weight:bold}
.outline{color:#a15c00}
.secondary{color:#555}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Generated}}</p>
<ul>
<li>{{t "report.summary.total_items"}}: {{.Report.Summary.TotalItems}}</li>
<li>{{t "report.summary.understocked"}}: {{.Report.Summary.Understocked}}</li>
<li>{{t "report.summary.restock_needed"}}: {{.Report.Summary.RestockNeeded}}</li>
<li>{{t "report.summary.expiring_soon"}}: {{.Report.Summary.ExpiringSoon}}</li>
</ul>
{{if .Report.Empty}}<p>{{t "report.empty"}}</p>{{end}}
{{range .Report.Vehicles}}
<h2>{{t "report.vehicle"}}: {{.Vehicle.Name}}</h2>
{{range .Cases}}
<h3>{{t "report.case"}}: {{.Case.Name}}</h3>
{{range .Modules}}
<h4>{{t "report.module"}}: {{.Module.Name}}</h4>
<table>
<thead><tr>
<th>{{t "report.columns.name"}}</th>
<th>{{t "report.columns.quantity"}}</th>
<th>{{t "report.columns.target"}}</th>
<th>{{t "report.columns.restock"}}</th>
<th>{{t "report.columns.expires"}}</th>
<th></th>
</tr></thead>
<tbody>
{{range .Items}}<tr>
<td>{{.Name}}</td>
<td>{{.TotalQuantity}}</td>
<td>{{.TargetQuantity}}</td>
<td>{{.Restock}}</td>
<td>{{date .EarliestExpiration}}</td>
<td>{{range .Statuses}}<span class="{{.Variant}}">{{status .Key}}</span> {{end}}</td>
</tr>
{{end}}</tbody>
</table>
{{end}}{{end}}{{end}}
</body>
</html>
`

// reportTemplate is parsed once; render clones it and binds the localizer.
var reportTemplate = template.Must(template.New("report").Funcs(reportFuncs(i18n.NewLocalizer(i18n.DefaultLocale))).Parse(reportHTML))

func reportFuncs(l *i18n.Localizer) template.FuncMap {
	return template.FuncMap{
		"t":      func(key string) string { return l.T(key) },
		"status": func(k domain.StatusKey) string { return l.T(k.LabelKey()) },
		"date": func(t *time.Time) string {
			if t == nil {
				return l.T("report.not_available")
			}
			return domain.FormatDate(t)
		},
	}
}

func reportTitle(l *i18n.Localizer, r *domain.Report) (title, generated string) {
	title = l.T("report.title." + string(r.Type))
	generated = l.T("report.generated_at", map[string]string{"date": r.GeneratedAt.Format("2006-01-02 15:04")})
	return title, generated
}

// RenderHTML renders the report as a standalone HTML page.
func (s *ReportService) RenderHTML(r *domain.Report, l *i18n.Localizer) ([]byte, error) {
	tmpl, err := reportTemplate.Clone()
	if err != nil {
		return nil, err
	}
	tmpl.Funcs(reportFuncs(l))

	title, generated := reportTitle(l, r)
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Lang      string
		Title     string
		Generated string
		Report    *domain.Report
	}{l.GetLocale(), title, generated, r})
	if err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPDF renders the report as an A4 PDF document.
func (s *ReportService) RenderPDF(r *domain.Report, l *i18n.Localizer) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate so umlauts survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title, generated := reportTitle(l, r)
	pdf.SetTitle(title, true)
	pdf.SetCreator("MediStock", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, strconv.Itoa(pdf.PageNo())+"/{nb}", "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, tr(generated), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	summary := []struct {
		key   string
		value int
	}{
		{"report.summary.total_items", r.Summary.TotalItems},
		{"report.summary.understocked", r.Summary.Understocked},
		{"report.summary.restock_needed", r.Summary.RestockNeeded},
		{"report.summary.expiring_soon", r.Summary.ExpiringSoon},
	}
	for _, row := range summary {
		pdf.CellFormat(60, 5, tr(l.T(row.key)), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 5, strconv.Itoa(row.value), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if r.Empty() {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 8, tr(l.T("report.empty")), "", 1, "L", false, 0, "")
	}

	widths := []float64{70, 22, 22, 26, 30}
	headers := []string{
		l.T("report.columns.name"),
		l.T("report.columns.quantity"),
		l.T("report.columns.target"),
		l.T("report.columns.restock"),
		l.T("report.columns.expires"),
	}

	for _, vg := range r.Vehicles {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, tr(l.T("report.vehicle")+": "+vg.Vehicle.Name), "", 1, "L", false, 0, "")
		for _, cg := range vg.Cases {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.CellFormat(0, 7, tr(l.T("report.case")+": "+cg.Case.Name), "", 1, "L", false, 0, "")
			for _, mg := range cg.Modules {
				pdf.SetFont("Helvetica", "B", 10)
				pdf.CellFormat(0, 6, tr(l.T("report.module")+": "+mg.Module.Name), "", 1, "L", false, 0, "")

				pdf.SetFillColor(235, 235, 235)
				pdf.SetFont("Helvetica", "B", 9)
				for i, h := range headers {
					pdf.CellFormat(widths[i], 6, tr(h), "1", 0, "L", true, 0, "")
				}
				pdf.Ln(-1)

				pdf.SetFont("Helvetica", "", 9)
				for _, it := range mg.Items {
					expires := l.T("report.not_available")
					if it.EarliestExpiration != nil {
						expires = domain.FormatDate(it.EarliestExpiration)
					}
					cells := []string{
						it.Name,
						strconv.Itoa(it.TotalQuantity),
						strconv.Itoa(it.TargetQuantity),
						strconv.Itoa(it.Restock),
						expires,
					}
					for i, c := range cells {
						align := "R"
						if i == 0 {
							align = "L"
						}
						pdf.CellFormat(widths[i], 6, tr(c), "1", 0, align, false, 0, "")
					}
					pdf.Ln(-1)
				}
				pdf.Ln(3)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}
