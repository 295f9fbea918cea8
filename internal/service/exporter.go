package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/clicktrail/internal/enrich"
	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
)

// Columns is the fixed export header. Downstream spreadsheets key on it.
var Columns = []string{
	"token",
	"state",
	"created_at",
	"claimed_at",
	"platform_user_id",
	"platform_username",
	"first_name",
	"last_name",
}

// SourceColumns follow Columns when ExportOptions.IncludeSource is set.
var SourceColumns = []string{
	"ip",
	"user_agent",
	"referrer",
	"device",
	"traffic_source",
}

type ExportOptions struct {
	IncludeSource bool
	// Limit keeps only the most recent Limit clicks (still oldest first).
	// Zero means everything.
	Limit int
}

// Exporter is the read-only CSV projection of the Click Store.
type Exporter struct {
	repo       repository.ClickRepository
	classifier *enrich.Classifier
}

func NewExporter(repo repository.ClickRepository) *Exporter {
	return &Exporter{repo: repo, classifier: enrich.NewClassifier()}
}

// WriteCSV writes the header and one row per click to w. It returns the
// number of data rows written.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer, opts ExportOptions) (int, error) {
	if opts.Limit < 0 {
		return 0, fmt.Errorf("exporting clicks: negative limit %d", opts.Limit)
	}

	clicks, err := e.repo.Export(ctx)
	if err != nil {
		return 0, fmt.Errorf("exporting clicks: %w", err)
	}
	if opts.Limit > 0 && len(clicks) > opts.Limit {
		clicks = clicks[len(clicks)-opts.Limit:]
	}

	cw := csv.NewWriter(w)

	header := Columns
	if opts.IncludeSource {
		header = append(append([]string{}, Columns...), SourceColumns...)
	}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("writing csv header: %w", err)
	}

	for i := range clicks {
		if err := cw.Write(e.row(&clicks[i], opts.IncludeSource)); err != nil {
			return i, fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(clicks), fmt.Errorf("flushing csv: %w", err)
	}
	return len(clicks), nil
}

// row renders one click. Pending clicks have empty claimed_at and identity
// cells. Text the visitor controls (Telegram names, request headers) goes
// through cell.
func (e *Exporter) row(c *model.Click, withSource bool) []string {
	rec := make([]string, 0, len(Columns)+len(SourceColumns))
	rec = append(rec, c.Token, string(c.State), formatTime(c.CreatedAt))

	if c.ClaimedAt != nil {
		rec = append(rec, formatTime(*c.ClaimedAt))
	} else {
		rec = append(rec, "")
	}

	if c.Identity != nil {
		rec = append(rec,
			strconv.FormatInt(c.Identity.UserID, 10),
			cell(c.Identity.Username),
			cell(c.Identity.FirstName),
			cell(c.Identity.LastName),
		)
	} else {
		rec = append(rec, "", "", "", "")
	}

	if withSource {
		rec = append(rec,
			cell(c.Source.IP),
			cell(c.Source.UserAgent),
			cell(c.Source.Referrer),
			enrich.Device(c.Source.UserAgent),
			e.classifier.Classify(c.Source),
		)
	}
	return rec
}

// formulaLeads are the first characters that make Excel, LibreOffice or
// Google Sheets evaluate a cell.
const formulaLeads = "=+-@\t\r"

// cell prefixes a quote to text a spreadsheet would run as a formula.
func cell(s string) string {
	if s != "" && strings.IndexByte(formulaLeads, s[0]) >= 0 {
		return "'" + s
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
