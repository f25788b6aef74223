// Package ticketdoc renders the printable artifacts of a booking: a QR PNG
// for the booking code and an A4 PDF e-ticket with one QR per ticket line.
package ticketdoc

import (
    "bytes"
    "fmt"
    "strconv"
    "strings"

    "github.com/phpdave11/gofpdf"
    "github.com/skip2/go-qrcode"

    "github.com/BintangGalang/TiketLoka/internal/model"
)

// QRSize is the edge length of generated QR images in pixels.
const QRSize = 256

// QRPNG encodes payload as a PNG QR code.
func QRPNG(payload string) ([]byte, error) {
    if strings.TrimSpace(payload) == "" {
        return nil, fmt.Errorf("ticketdoc: empty qr payload")
    }
    return qrcode.Encode(payload, qrcode.Medium, QRSize)
}

// BookingPDF renders the e-ticket for b.  Each detail gets its own block
// with the ticket code printed next to its QR image.
func BookingPDF(b *model.Booking) ([]byte, error) {
    if b == nil {
        return nil, fmt.Errorf("ticketdoc: nil booking")
    }
    pdf := gofpdf.New("P", "mm", "A4", "")
    pdf.SetTitle("E-Ticket "+b.BookingCode, true)
    pdf.AddPage()

    pdf.SetFont("Arial", "B", 18)
    pdf.Cell(0, 10, "TiketLoka E-Ticket")
    pdf.Ln(12)

    pdf.SetFont("Arial", "", 11)
    buyer := "-"
    if b.User != nil {
        buyer = b.User.Name
    }
    header := [][2]string{
        {"Booking Code", b.BookingCode},
        {"Buyer", buyer},
        {"Payment", b.PaymentMethod},
        {"Status", strings.ToUpper(b.Status)},
        {"Paid At", b.PaidAt.UTC().Format("02 Jan 2006 15:04 MST")},
        {"Grand Total", "Rp " + Rupiah(b.GrandTotal)},
    }
    for _, row := range header {
        pdf.CellFormat(40, 7, row[0], "", 0, "L", false, 0, "")
        pdf.CellFormat(0, 7, ": "+row[1], "", 1, "L", false, 0, "")
    }
    pdf.Ln(4)

    opts := gofpdf.ImageOptions{ImageType: "PNG"}
    for i, d := range b.Details {
        png, err := QRPNG(d.TicketCode)
        if err != nil {
            return nil, fmt.Errorf("ticket %s: %w", d.TicketCode, err)
        }
        if pdf.GetY() > 230 {
            pdf.AddPage()
        }
        top := pdf.GetY()
        pdf.Line(10, top, 200, top)
        pdf.Ln(3)

        name := "-"
        if d.Destination != nil {
            name = d.Destination.Name
        }
        pdf.SetFont("Arial", "B", 13)
        pdf.CellFormat(140, 8, fmt.Sprintf("%d. %s", i+1, name), "", 1, "L", false, 0, "")
        pdf.SetFont("Arial", "", 11)
        lines := []string{
            "Visit Date : " + d.VisitDate,
            "Quantity   : " + strconv.Itoa(d.Quantity),
            "Subtotal   : Rp " + Rupiah(d.Subtotal),
            "Ticket Code: " + d.TicketCode,
        }
        for _, l := range lines {
            pdf.CellFormat(140, 6, l, "", 1, "L", false, 0, "")
        }
        if d.Redeemed() {
            pdf.SetTextColor(200, 0, 0)
            pdf.CellFormat(140, 6, "USED "+d.RedeemedAt.UTC().Format("02 Jan 2006 15:04"), "", 1, "L", false, 0, "")
            pdf.SetTextColor(0, 0, 0)
        }

        img := "qr-" + d.TicketCode
        pdf.RegisterImageOptionsReader(img, opts, bytes.NewReader(png))
        pdf.ImageOptions(img, 160, top+3, 35, 35, false, opts, 0, "")
        if y := top + 42; pdf.GetY() < y {
            pdf.SetY(y)
        }
    }

    var buf bytes.Buffer
    if err := pdf.Output(&buf); err != nil {
        return nil, err
    }
    return buf.Bytes(), nil
}

// Rupiah formats an amount with dot thousands separators, e.g. 220.000.
func Rupiah(v int64) string {
    neg := v < 0
    if neg {
        v = -v
    }
    s := strconv.FormatInt(v, 10)
    var b strings.Builder
    for i, r := range s {
        if i > 0 && (len(s)-i)%3 == 0 {
            b.WriteByte('.')
        }
        b.WriteRune(r)
    }
    if neg {
        return "-" + b.String()
    }
    return b.String()
}
