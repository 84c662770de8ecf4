package reader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// htmlText returns the visible text of an HTML document, one text run per
// line.
func htmlText(data []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(data))
	var lines []string
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.Join(lines, "\n"), nil
			}
			return "", fmt.Errorf("parse html: %w", z.Err())
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if t := strings.TrimSpace(string(z.Text())); t != "" {
				lines = append(lines, t)
			}
		}
	}
}

func isHiddenTag(name []byte) bool {
	switch string(name) {
	case "script", "style", "head":
		return true
	}
	return false
}

// xmlText flattens an XML document into "tag: text" and "tag@attr: value"
// lines.
func xmlText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		lines []string
		stack []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			for _, a := range t.Attr {
				lines = append(lines, fmt.Sprintf("%s@%s: %s", t.Name.Local, a.Name.Local, a.Value))
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text != "" && len(stack) > 0 {
				lines = append(lines, stack[len(stack)-1]+": "+text)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func openZip(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open office archive: %w", err)
	}
	return zr, nil
}

func zipEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// docxText collects the text runs of word/document.xml, one paragraph per
// line.
func docxText(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}
	body, err := zipEntry(zr, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("read docx body: %w", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// xlsxText renders every worksheet as "=== Sheet: name ===" followed by one
// " | "-joined line per non-empty row. It returns the number of sheets.
func xlsxText(data []byte) (string, int, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", 0, err
	}

	shared, err := xlsxSharedStrings(zr)
	if err != nil {
		return "", 0, err
	}
	names, err := xlsxSheetNames(zr)
	if err != nil {
		return "", 0, err
	}

	var parts []string
	for i, name := range names {
		raw, err := zipEntry(zr, "xl/worksheets/sheet"+strconv.Itoa(i+1)+".xml")
		if err != nil {
			continue
		}
		rows, err := xlsxRows(raw, shared)
		if err != nil {
			return "", 0, fmt.Errorf("sheet %q: %w", name, err)
		}
		if len(rows) > 0 {
			parts = append(parts, "=== Sheet: "+name+" ===\n"+strings.Join(rows, "\n"))
		}
	}
	return strings.Join(parts, "\n\n"), len(names), nil
}

func xlsxSharedStrings(zr *zip.Reader) ([]string, error) {
	raw, err := zipEntry(zr, "xl/sharedStrings.xml")
	if err != nil {
		// Workbooks without text cells have no shared string table.
		return nil, nil
	}
	var sst struct {
		Items []struct {
			T    string `xml:"t"`
			Runs []struct {
				T string `xml:"t"`
			} `xml:"r"`
		} `xml:"si"`
	}
	if err := xml.Unmarshal(raw, &sst); err != nil {
		return nil, fmt.Errorf("parse shared strings: %w", err)
	}
	out := make([]string, len(sst.Items))
	for i, it := range sst.Items {
		if it.T != "" {
			out[i] = it.T
			continue
		}
		var b strings.Builder
		for _, r := range it.Runs {
			b.WriteString(r.T)
		}
		out[i] = b.String()
	}
	return out, nil
}

func xlsxSheetNames(zr *zip.Reader) ([]string, error) {
	raw, err := zipEntry(zr, "xl/workbook.xml")
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	var wb struct {
		Sheets []struct {
			Name string `xml:"name,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := xml.Unmarshal(raw, &wb); err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	return names, nil
}

func xlsxRows(raw []byte, shared []string) ([]string, error) {
	var ws struct {
		Rows []struct {
			Cells []struct {
				Type   string `xml:"t,attr"`
				Value  string `xml:"v"`
				Inline string `xml:"is>t"`
			} `xml:"c"`
		} `xml:"sheetData>row"`
	}
	if err := xml.Unmarshal(raw, &ws); err != nil {
		return nil, err
	}
	var rows []string
	for _, r := range ws.Rows {
		var values []string
		for _, c := range r.Cells {
			v := c.Value
			switch c.Type {
			case "s":
				if idx, err := strconv.Atoi(v); err == nil && idx >= 0 && idx < len(shared) {
					v = shared[idx]
				}
			case "inlineStr":
				v = c.Inline
			}
			if v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			rows = append(rows, strings.Join(values, " | "))
		}
	}
	return rows, nil
}
