package reader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// Reader extracts text from tender files. Text, markup (including GAEB and
// AI form XML) and Office Open XML formats are read natively; everything else goes to Tika when configured.
type Reader struct {
	tika   *TikaClient
	logger *slog.Logger
}

// New creates a Reader. tika may be nil.
func New(tika *TikaClient, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{tika: tika, logger: logger}
}

// Read extracts the text of the file at path. Failures are reported on the
// returned document rather than as an error so that a batch can continue.
func (r *Reader) Read(ctx context.Context, path string) *model.Document {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	doc := &model.Document{
		Path:      abs,
		Filename:  filepath.Base(abs),
		Extension: strings.ToLower(filepath.Ext(abs)),
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		doc.Error = fmt.Sprintf("read %s: %v", doc.Filename, err)
		r.logger.Warn("document unreadable", "document", doc.Filename, "err", err)
		return doc
	}

	switch doc.Extension {
	case ".txt", ".md", ".csv", ".json":
		doc.Text, doc.Method = decodeText(data)
	case ".html", ".htm":
		doc.Text, err = htmlText(data)
		doc.Method = "html"
	case ".xml", ".xsl", ".aidoc", ".aidocdef", ".aiform", ".x83", ".d83":
		// GAEB exchange files (.x83, .d83) and AI form files are XML.
		doc.Text, err = xmlText(data)
		doc.Method = "xml"
		if err != nil {
			r.logger.Debug("xml parse failed, using raw text", "document", doc.Filename, "err", err)
			doc.Text, doc.Method = decodeText(data)
			err = nil
		}
	case ".docx":
		doc.Text, err = docxText(data)
		doc.Method = "docx-zip"
	case ".xlsx":
		var sheets int
		doc.Text, sheets, err = xlsxText(data)
		doc.Method = "xlsx-zip"
		doc.Metadata = map[string]string{"sheet_count": fmt.Sprint(sheets)}
	default:
		if r.tika == nil {
			doc.Error = fmt.Sprintf("unsupported format %s (configure a Tika server to read it)", doc.Extension)
			r.logger.Warn("unsupported document", "document", doc.Filename)
			return doc
		}
		doc.Text, err = r.tika.Extract(ctx, doc.Filename, data)
		doc.Method = "tika"
	}

	if err != nil {
		doc.Error = err.Error()
		r.logger.Warn("document extraction failed", "document", doc.Filename, "method", doc.Method, "err", err)
		return doc
	}
	if doc.Successful() {
		r.logger.Info("document read", "document", doc.Filename, "chars", len(doc.Text), "method", doc.Method)
	} else {
		r.logger.Warn("document has no text", "document", doc.Filename, "method", doc.Method)
	}
	return doc
}

// ReadAll reads every path in order.
func (r *Reader) ReadAll(ctx context.Context, paths []string) []*model.Document {
	docs := make([]*model.Document, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		docs = append(docs, r.Read(ctx, p))
	}
	return docs
}

// decodeText returns data as UTF-8, treating invalid UTF-8 as Windows-1252,
// the usual encoding of older German office files.
func decodeText(data []byte) (string, string) {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data), "text-utf-8"
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�"), "text-fallback"
	}
	return string(out), "text-cp1252"
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
