package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"renovationAi/internal/imaging"
	"renovationAi/internal/renovation"
)

const (
	defaultDisplayWidth = 250.0
	maxDisplayHeight    = 320.0
	columnGap           = 20.0
	lineHeight          = 16.0
)

// ErrIncompleteSnapshot is returned when a snapshot lacks the before or after image.
var ErrIncompleteSnapshot = errors.New("report: snapshot needs both before and after images")

// documentDate is stamped on every report so identical inputs give identical bytes.
var documentDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var nextSteps = []string{
	"Share this report with two or three local contractors and ask for itemized quotes.",
	"Confirm measurements on site before ordering materials.",
	"Check whether the work needs a permit in your municipality.",
}

// Builder renders before/after renovation reports as PDF documents.
type Builder struct {
	SearchTemplate   string
	IncludeNextSteps bool
	// Compress deflates page content streams; tests turn it off to inspect text.
	Compress     bool
	DisplayWidth float64
}

// NewBuilder returns a builder with compression on.
func NewBuilder(searchTemplate string, includeNextSteps bool) *Builder {
	return &Builder{
		SearchTemplate:   searchTemplate,
		IncludeNextSteps: includeNextSteps,
		Compress:         true,
		DisplayWidth:     defaultDisplayWidth,
	}
}

// Build renders the snapshot. It performs no I/O and never modifies the snapshot's images.
func (b *Builder) Build(snap renovation.Snapshot) (renovation.Report, error) {
	if snap.Before.Empty() || snap.After.Empty() {
		return renovation.Report{}, ErrIncompleteSnapshot
	}

	before, err := imaging.ToJPEG(snap.Before)
	if err != nil {
		return renovation.Report{}, fmt.Errorf("report: before image: %w", err)
	}
	after, err := imaging.ToJPEG(snap.After)
	if err != nil {
		return renovation.Report{}, fmt.Errorf("report: after image: %w", err)
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(b.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetTitle("Renovation Report", true)
	pdf.SetCreator("renovationAi", true)
	pdf.SetAutoPageBreak(true, 40)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 30, "Renovation Report", "", 1, "L", false, 0, "")

	if !snap.Request.IsZero() {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, lineHeight, "Specs:", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, lineHeight, tr(snap.Request.SpecLine()), "", "L", false)
	}

	if snap.Summary != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, lineHeight, tr(snap.Summary), "", "L", false)
	}

	pdf.Ln(10)
	b.drawComparison(pdf, before, after)

	if snap.Rationale != "" {
		section(pdf, "Design Rationale")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, lineHeight, tr(snap.Rationale), "", "L", false)
	}

	if len(snap.Materials) > 0 {
		section(pdf, "Shopping List")
		for _, m := range snap.Materials {
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetTextColor(0, 0, 0)
			pdf.CellFormat(220, lineHeight, tr("- "+m.Item), "", 0, "L", false, 0, "")
			pdf.SetTextColor(20, 80, 200)
			pdf.CellFormat(0, lineHeight, tr("Search: "+m.Query), "", 1, "L", false, 0, m.SearchURL(b.SearchTemplate))
		}
		pdf.SetTextColor(0, 0, 0)
	}

	if b.IncludeNextSteps {
		section(pdf, "Next Steps")
		pdf.SetFont("Helvetica", "", 11)
		for i, step := range nextSteps {
			pdf.MultiCell(0, lineHeight, fmt.Sprintf("%d. %s", i+1, step), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return renovation.Report{}, fmt.Errorf("report: render pdf: %w", err)
	}

	return renovation.Report{
		Summary:   snap.Summary,
		Rationale: snap.Rationale,
		Before:    snap.Before,
		After:     snap.After,
		Materials: append([]renovation.MaterialSuggestion(nil), snap.Materials...),
		PDF:       buf.Bytes(),
	}, nil
}

func (b *Builder) drawComparison(pdf *fpdf.Fpdf, before, after imaging.Image) {
	width := b.DisplayWidth
	if width <= 0 {
		width = defaultDisplayWidth
	}
	left, _, _, _ := pdf.GetMargins()

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetX(left)
	pdf.CellFormat(width, lineHeight, "Before", "", 0, "C", false, 0, "")
	pdf.SetX(left + width + columnGap)
	pdf.CellFormat(width, lineHeight, "After", "", 1, "C", false, 0, "")

	top := pdf.GetY() + 4
	bw, bh := fitBox(before, width)
	aw, ah := fitBox(after, width)
	height := bh
	if ah > height {
		height = ah
	}
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if top+height > pageHeight-bottom {
		pdf.AddPage()
		top = pdf.GetY()
	}

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(imageName("before", before), opts, bytes.NewReader(before.Data))
	pdf.RegisterImageOptionsReader(imageName("after", after), opts, bytes.NewReader(after.Data))
	pdf.ImageOptions(imageName("before", before), left+(width-bw)/2, top, bw, bh, false, opts, 0, "")
	pdf.ImageOptions(imageName("after", after), left+width+columnGap+(width-aw)/2, top, aw, ah, false, opts, 0, "")
	pdf.SetY(top + height + 10)
}

// fitBox scales the image to the column width, shrinking further when it would exceed the height cap.
func fitBox(img imaging.Image, width float64) (float64, float64) {
	ratio := img.AspectRatio()
	if ratio <= 0 {
		return width, width
	}
	w, h := width, width/ratio
	if h > maxDisplayHeight {
		h = maxDisplayHeight
		w = h * ratio
	}
	return w, h
}

func imageName(prefix string, img imaging.Image) string {
	return prefix + "-" + img.Fingerprint()[:16]
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 20, title, "", 1, "L", false, 0, "")
}

// PreviewURI renders the document as an inline data URI.
func PreviewURI(r renovation.Report) string {
	if len(r.PDF) == 0 {
		return ""
	}
	return imaging.DataURI(r.PDF, "application/pdf")
}
