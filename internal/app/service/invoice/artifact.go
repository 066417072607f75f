package invoice

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/logctx"
)

var artifactTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.Number}}</title></head>
<body>
  <h1>{{.SenderName}}</h1>
  <p>{{.SenderAddress}}</p>
  <h2>Invoice {{.Number}}</h2>
  <p>Issued: {{.IssuedAt}}<br>Due: {{.DueAt}}</p>
  <table>
    <tr><td>{{.Description}}</td><td>{{.Subtotal}} {{.Currency}}</td></tr>
    {{if .Discount}}<tr><td>Discount ({{.CouponCode}})</td><td>-{{.Discount}} {{.Currency}}</td></tr>{{end}}
    <tr><td>Tax</td><td>{{.Tax}} {{.Currency}}</td></tr>
    <tr><td><b>Total</b></td><td><b>{{.Total}} {{.Currency}}</b></td></tr>
  </table>
  {{if .VATID}}<p>Reverse charge — VAT ID {{.VATID}}</p>{{end}}
</body>
</html>
`))

type artifactData struct {
	Number        string
	SenderName    string
	SenderAddress string
	IssuedAt      string
	DueAt         string
	Description   string
	Subtotal      string
	Discount      string
	CouponCode    string
	Tax           string
	Total         string
	Currency      string
	VATID         string
}

func (s *Service) artifactData(inv *models.Invoice, txn *models.Transaction, d *BillingDetails) *artifactData {
	desc := fmt.Sprintf("%s purchase", txn.Type)
	if ref := txn.ContentRef(); ref != nil {
		desc = fmt.Sprintf("%s %s", ref.Type, ref.ID)
	} else if txn.PlanID != nil {
		desc = fmt.Sprintf("plan %s", *txn.PlanID)
	}
	data := &artifactData{
		Number:        inv.Number,
		SenderName:    s.cfg.Invoice.SenderName,
		SenderAddress: s.cfg.Invoice.SenderAddress,
		IssuedAt:      inv.IssuedAt.Format("2006-01-02"),
		DueAt:         inv.DueAt.Format("2006-01-02"),
		Description:   desc,
		Subtotal:      formatAmount(txn.Amount),
		Tax:           formatAmount(inv.TaxAmount),
		Total:         formatAmount(inv.Total),
		Currency:      strings.ToUpper(inv.Currency),
		VATID:         d.VATID,
	}
	if txn.DiscountAmount > 0 {
		data.Discount = formatAmount(txn.DiscountAmount)
		data.CouponCode = txn.CouponCode
	}
	return data
}

// renderArtifact writes the invoice document under the configured artifact
// directory and records its path. Failures are logged only.
func (s *Service) renderArtifact(ctx context.Context, inv *models.Invoice, txn *models.Transaction, d *BillingDetails) {
	log := logctx.FromCtx(ctx, s.log)

	var buf bytes.Buffer
	if err := artifactTmpl.Execute(&buf, s.artifactData(inv, txn, d)); err != nil {
		log.Errorf("failed to render invoice %s: %v", inv.Number, err)
		return
	}

	dir := s.cfg.Invoice.ArtifactDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Errorf("failed to create invoice artifact dir: %v", err)
		return
	}
	path := filepath.Join(dir, inv.Number+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		log.Errorf("failed to write invoice artifact %s: %v", path, err)
		return
	}

	if err := s.db.Model(&models.Invoice{}).
		Where("id = ?", inv.ID).
		Update("artifact_path", path).Error; err != nil {
		log.Errorf("failed to record invoice artifact path: %v", err)
	}
}

// deliver emails the invoice and marks it sent.
func (s *Service) deliver(ctx context.Context, inv *models.Invoice, txn *models.Transaction, d *BillingDetails) {
	log := logctx.FromCtx(ctx, s.log)

	var buf bytes.Buffer
	if err := artifactTmpl.Execute(&buf, s.artifactData(inv, txn, d)); err != nil {
		log.Errorf("failed to render invoice mail %s: %v", inv.Number, err)
		return
	}
	subject := fmt.Sprintf("Your invoice %s", inv.Number)
	if err := s.mail.Send(d.Email, subject, buf.String()); err != nil {
		log.Errorw("invoice_mail_failed", "invoice_id", inv.ID, "error", err)
		return
	}

	if err := s.db.Model(&models.Invoice{}).
		Where("id = ? AND status = ?", inv.ID, models.InvoiceStatusPaid).
		Update("status", models.InvoiceStatusSent).Error; err != nil {
		log.Errorf("failed to mark invoice sent: %v", err)
	}
}

// formatAmount renders minor currency units as a decimal string.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
