package prescription

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF lays out a printable copy of p for the pharmacy counter. The
// verification code is printed large so it can be read back over the phone.
func RenderPDF(p *Prescription) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(fmt.Sprintf("Prescription %d", p.ID), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Careplus Prescription", "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "B", 20)
	pdf.CellFormat(0, 12, p.VerificationCode, "1", 1, "C", false, 0, "")
	pdf.Ln(4)

	detail := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(45, 7, label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 7, tr(value), "", "", false)
	}
	detail("Doctor:", p.DoctorName)
	detail("Patient:", p.PatientName)
	detail("Issued:", p.CreatedAt.Format("January 02, 2006"))
	detail("Valid until:", p.ValidUntil.Format("January 02, 2006"))
	detail("Status:", p.Status)
	detail("Diagnosis:", p.Diagnosis)
	pdf.Ln(4)

	widths := []float64{8, 52, 28, 32, 28, 32}
	headers := []string{"#", "Medication", "Dosage", "Frequency", "Duration", "Quantity"}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for i, m := range p.Medications {
		cells := []string{strconv.Itoa(i + 1), m.Name, m.Dosage, m.Frequency, m.Duration, strconv.Itoa(m.Quantity)}
		for j, v := range cells {
			pdf.CellFormat(widths[j], 7, tr(v), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
		if m.Instructions != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.MultiCell(0, 5, tr("   "+m.Instructions), "", "", false)
			pdf.SetFont("Arial", "", 10)
		}
	}

	if p.Notes != "" {
		pdf.Ln(4)
		detail("Notes:", p.Notes)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render prescription %d: %w", p.ID, err)
	}
	return buf.Bytes(), nil
}
