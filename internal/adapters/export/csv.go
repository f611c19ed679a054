// Package export renders and stores downloadable order exports.
package export

import (
	"bytes"
	"strconv"
	"strings"

	"preordercore/internal/core"
)

// csvHeader is the fixed column layout consumed by the admin's spreadsheet
// workflow. Column names are kept verbatim for compatibility.
const csvHeader = "User,Produk,Ukuran,Warna,Qty,Harga,Total,Periode,Alamat Dropship"

// utf8BOM makes Excel detect UTF-8 instead of falling back to a legacy codepage.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RenderOrdersCSV renders orders in the legacy export layout: a UTF-8 BOM,
// the fixed header, then one line per order. Only the dropship address column
// is quoted; it is the one free-text field that may contain commas or quotes.
func RenderOrdersCSV(orders []core.Order) []byte {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	buf.WriteString(csvHeader)
	buf.WriteByte('\n')
	for _, order := range orders {
		buf.WriteString(order.UserName)
		buf.WriteByte(',')
		buf.WriteString(order.ProductName)
		buf.WriteByte(',')
		buf.WriteString(order.Size)
		buf.WriteByte(',')
		buf.WriteString(order.Color)
		buf.WriteByte(',')
		buf.WriteString(strconv.Itoa(order.Quantity))
		buf.WriteByte(',')
		buf.WriteString(formatAmount(order.Price))
		buf.WriteByte(',')
		buf.WriteString(formatAmount(order.Total))
		buf.WriteByte(',')
		buf.WriteString(order.Period)
		buf.WriteByte(',')
		buf.WriteString(quoteAddress(order.DropshipAddress))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// quoteAddress always wraps the address in double quotes, doubling any quotes
// inside it.
func quoteAddress(addr string) string {
	return `"` + strings.ReplaceAll(addr, `"`, `""`) + `"`
}
