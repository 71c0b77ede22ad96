package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xls "github.com/extrame/xls"
	pdf "github.com/ledongthuc/pdf"
	"github.com/saintfish/chardet"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var ErrUnsupported = errors.New("unsupported file type")

// Supported reports whether Decode understands the file extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls", ".csv", ".txt", ".html", ".htm", ".pdf":
		return true
	}
	return false
}

// Decode picks a reader by file extension and returns the rows of the first sheet or table.
func Decode(filename string, content []byte) ([]RawRow, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx", ".xlsm":
		return readXLSX(content)
	case ".xls":
		return readXLS(content)
	case ".csv", ".txt":
		return readCSV(content)
	case ".html", ".htm":
		return readHTML(content)
	case ".pdf":
		return readPDF(content)
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupported)
	}
}

func readXLSX(content []byte) ([]RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	return StringRows(rows), nil
}

func readXLS(content []byte) ([]RawRow, error) {
	var wb *xls.WorkBook
	var lastErr error
	for _, charset := range []string{"windows-1252", "utf-8", "windows-1251"} {
		w, err := xls.OpenReader(bytes.NewReader(content), charset)
		if err == nil && w != nil {
			wb = w
			break
		}
		lastErr = err
	}
	if wb == nil {
		if lastErr == nil {
			lastErr = errors.New("xls: failed to open workbook")
		}
		return nil, lastErr
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	maxCols := xlsWidth(sheet)
	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		cols := make([]string, maxCols)
		if row != nil {
			for j := 0; j < maxCols; j++ {
				cols[j] = strings.TrimSpace(row.Col(j))
			}
		}
		grid = append(grid, cols)
	}
	return StringRows(grid), nil
}

// xlsWidth scans cells directly; Row.LastCol is unreliable for some exporters.
func xlsWidth(sheet *xls.WorkSheet) int {
	const scanMax = 256
	width := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		r := sheet.Row(i)
		if r == nil {
			continue
		}
		for j := width; j < scanMax; j++ {
			if strings.TrimSpace(r.Col(j)) != "" {
				width = j + 1
			}
		}
	}
	return max(width, 1)
}

func readCSV(content []byte) ([]RawRow, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	br := bufio.NewReader(bytes.NewReader(content))

	peek, _ := br.Peek(4096)
	var dec io.Reader = br
	if enc := detectEncoding(peek); enc != nil {
		dec = transform.NewReader(br, enc.NewDecoder())
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if bytes.Count(peek, []byte(";")) > bytes.Count(peek, []byte(",")) {
		cr.Comma = ';'
	}

	var grid [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		grid = append(grid, rec)
	}
	return StringRows(grid), nil
}

// detectEncoding returns nil for UTF-8 and anything unrecognized.
func detectEncoding(sample []byte) encoding.Encoding {
	if len(sample) == 0 {
		return nil
	}
	det, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || det == nil {
		return nil
	}
	switch strings.ToLower(det.Charset) {
	case "windows-1252":
		return charmap.Windows1252
	case "iso-8859-1":
		return charmap.ISO8859_1
	case "windows-1251", "cp1251":
		return charmap.Windows1251
	}
	return nil
}

// readHTML reads the largest <table> of an HTML export.
func readHTML(content []byte) ([]RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var best [][]string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var grid [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, collapse(cell.Text()))
			})
			grid = append(grid, cells)
		})
		if len(grid) > len(best) {
			best = grid
		}
	})
	return StringRows(best), nil
}

var reSpaces = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// readPDF rebuilds table rows from positioned text: a horizontal gap wider
// than the font size starts a new cell.
func readPDF(content []byte) ([]RawRow, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	var grid [][]string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			if cells := pdfCells(row.Content); len(cells) > 0 {
				grid = append(grid, cells)
			}
		}
	}
	return StringRows(grid), nil
}

func pdfCells(words pdf.TextHorizontal) []string {
	sorted := make([]pdf.Text, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells []string
	var cur strings.Builder
	end := 0.0
	for i, w := range sorted {
		gap := w.FontSize
		if gap <= 0 {
			gap = 6
		}
		if i > 0 && w.X-end > gap {
			cells = append(cells, collapse(cur.String()))
			cur.Reset()
		}
		cur.WriteString(w.S)
		end = w.X + w.W
	}
	if cur.Len() > 0 {
		cells = append(cells, collapse(cur.String()))
	}
	return cells
}
