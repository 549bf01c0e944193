package qr

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// SheetEntry is one card on the printable sheet.
type SheetEntry struct {
	TableNumber int
	Name        string
}

type SheetOptions struct {
	RestaurantName string
	Instructions   string
	CodesPerRow    int
}

func defaultSheetOptions(o SheetOptions) SheetOptions {
	if o.RestaurantName == "" {
		o.RestaurantName = "Il Mio Ristorante"
	}
	if o.Instructions == "" {
		o.Instructions = "Scansiona il QR code per visualizzare la classifica punti"
	}
	if o.CodesPerRow <= 0 {
		o.CodesPerRow = 3
	}
	return o
}

// WriteSheet renders an A4 PDF with one card per table and writes it to w.
func (r *Renderer) WriteSheet(w io.Writer, entries []SheetEntry, opts SheetOptions) error {
	opts = defaultSheetOptions(opts)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 10)

	pageW, pageH := pdf.GetPageSize()
	left, top, right, _ := pdf.GetMargins()
	cardW := (pageW - left - right) / float64(opts.CodesPerRow)
	const cardH = 80.0
	const headerH = 25.0

	header := func() {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, tr(opts.RestaurantName), "", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr("Codici QR Tavoli - Sistema Punti Fedeltà"), "", 1, "C", false, 0, "")
	}

	header()
	x, y := left, top+headerH
	for i, e := range entries {
		if y+cardH > pageH-10 {
			header()
			x, y = left, top+headerH
		}

		code := Format(e.TableNumber)
		png, err := r.PNG(code)
		if err != nil {
			return err
		}
		imgName := fmt.Sprintf("qr-%d", e.TableNumber)
		imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(imgName, imgOpts, bytes.NewReader(png))

		name := e.Name
		if name == "" {
			name = fmt.Sprintf("Tavolo %d", e.TableNumber)
		}

		pdf.Rect(x+2, y, cardW-4, cardH-4, "D")
		pdf.SetXY(x+2, y+2)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(cardW-4, 7, tr(name), "", 0, "C", false, 0, "")
		pdf.ImageOptions(imgName, x+(cardW-45)/2, y+11, 45, 45, false, imgOpts, 0, "")
		pdf.SetXY(x+4, y+58)
		pdf.SetFont("Helvetica", "", 7)
		pdf.MultiCell(cardW-8, 3.5, tr(opts.Instructions), "", "C", false)

		if (i+1)%opts.CodesPerRow == 0 {
			x = left
			y += cardH
		} else {
			x += cardW
		}
	}

	pdf.SetXY(left, pageH-15)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Generato il %s - %s", time.Now().Format("02/01/2006"), opts.RestaurantName)), "", 0, "C", false, 0, "")

	return pdf.Output(w)
}
