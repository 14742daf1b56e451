// Package spreadsheet performs the local checks run on a file before it is
// uploaded: supported format and, for workbooks, that a requested sheet exists.
package spreadsheet

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// Format is an upload format accepted by the backend.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// ErrUnsupportedFormat is returned for extensions the backend does not accept.
var ErrUnsupportedFormat = errors.New("unsupported file format (use .csv, .xlsx or .xls)")

// DetectFormat classifies a file by extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Sheet is one worksheet entry of a workbook.
type Sheet struct {
	Name    string
	SheetID int
	RID     string
}

// SheetNames lists the worksheet names of an .xlsx workbook in workbook order.
func SheetNames(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	workbookXML := readZipFile(zr, "xl/workbook.xml")
	if len(workbookXML) == 0 {
		return nil, errors.New("open xlsx: xl/workbook.xml missing")
	}
	sheets := parseWorkbook(workbookXML)
	names := make([]string, 0, len(sheets))
	for _, s := range sheets {
		names = append(names, s.Name)
	}
	return names, nil
}

// CheckSheet verifies that sheet exists in the workbook (case-insensitive)
// and returns the workbook's spelling of it.
func CheckSheet(data []byte, sheet string) (string, error) {
	names, err := SheetNames(data)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.EqualFold(n, sheet) {
			return n, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found; available sheets: %s", sheet, strings.Join(names, ", "))
}

// parseWorkbook extracts sheet entries with names and relationship ids.
func parseWorkbook(data []byte) []Sheet {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []Sheet
	for {
		tok, err := dec.Token()
		if err != nil {
			// io.EOF or a malformed tail; keep what was read
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s Sheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID, _ = strconv.Atoi(a.Value)
			case "id":
				s.RID = a.Value // r: namespace
			}
		}
		sheets = append(sheets, s)
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}
