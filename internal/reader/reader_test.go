package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietReader(tika *TikaClient) *Reader {
	return New(tika, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pdf", []byte("x"))
	writeFile(t, dir, "B.DOCX", []byte("x"))
	writeFile(t, dir, "notes.txt", []byte("x"))
	writeFile(t, dir, "image.png", []byte("x"))
	writeFile(t, dir, ".hidden.txt", []byte("x"))
	writeFile(t, dir, "~$lock.docx", []byte("x"))
	writeFile(t, dir, "sub/c.xlsx", []byte("x"))
	writeFile(t, dir, "drafts/d.txt", []byte("x"))
	writeFile(t, dir, "sub/old.bak.txt", []byte("x"))
	writeFile(t, dir, ".tender_state/TODO.md", []byte("x"))
	writeFile(t, dir, ".git/config.txt", []byte("x"))
	writeFile(t, dir, IgnoreFile, []byte("drafts/\n*.bak.txt\n"))

	files, err := Scan(dir)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"B.DOCX", "a.pdf", "notes.txt", "sub/c.xlsx"}, rel)
}

func TestScan_NotADirectory(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", []byte("x"))
	_, err := Scan(path)
	assert.Error(t, err)
}

func TestRead_Text(t *testing.T) {
	dir := t.TempDir()
	utf := writeFile(t, dir, "utf.txt", []byte("\xEF\xBB\xBFAngebotsfrist: 12.03."))
	latin := writeFile(t, dir, "latin.csv", []byte("Gr\xF6\xDFe;Ma\xDF"))

	r := quietReader(nil)
	doc := r.Read(context.Background(), utf)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "Angebotsfrist: 12.03.", doc.Text)
	assert.Equal(t, "text-utf-8", doc.Method)
	assert.Equal(t, "utf.txt", doc.Filename)
	assert.Equal(t, ".txt", doc.Extension)

	doc = r.Read(context.Background(), latin)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "Größe;Maß", doc.Text)
	assert.Equal(t, "text-cp1252", doc.Method)
}

func TestRead_HTML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "info.html", []byte(`<html><head><title>x</title><style>p{}</style></head>
<body><h1>Vergabe</h1><script>alert(1)</script><p>Frist  beachten</p></body></html>`))

	doc := quietReader(nil).Read(context.Background(), path)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "Vergabe\nFrist  beachten", doc.Text)
}

func TestRead_XML(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "form.xml", []byte(`<?xml version="1.0" encoding="UTF-8"?>
<form id="124"><field name="firma">Muster GmbH</field><empty/></form>`))
	bad := writeFile(t, dir, "broken.xml", []byte(`<form><field>offen`))

	r := quietReader(nil)
	doc := r.Read(context.Background(), good)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "form@id: 124\nfield@name: firma\nfield: Muster GmbH", doc.Text)
	assert.Equal(t, "xml", doc.Method)

	doc = r.Read(context.Background(), bad)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "<form><field>offen", doc.Text)
	assert.Equal(t, "text-utf-8", doc.Method)
}

func TestRead_DOCX(t *testing.T) {
	body := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Eigenerklärung</w:t></w:r><w:r><w:t xml:space="preserve"> zur Eignung</w:t></w:r></w:p>
<w:p><w:r><w:t>Unterschrift</w:t><w:tab/><w:t>Datum</w:t></w:r></w:p>
</w:body></w:document>`
	path := writeFile(t, t.TempDir(), "form.docx", zipBytes(t, map[string]string{"word/document.xml": body}))

	doc := quietReader(nil).Read(context.Background(), path)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "Eigenerklärung zur Eignung\nUnterschrift\tDatum", doc.Text)
	assert.Equal(t, "docx-zip", doc.Method)
}

func TestRead_XLSX(t *testing.T) {
	path := writeFile(t, t.TempDir(), "preise.xlsx", zipBytes(t, map[string]string{
		"xl/workbook.xml":      `<workbook><sheets><sheet name="Preisblatt"/><sheet name="Leer"/></sheets></workbook>`,
		"xl/sharedStrings.xml": `<sst><si><t>Position</t></si><si><r><t>Ein</t></r><r><t>heitspreis</t></r></si></sst>`,
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData>
<row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>
<row><c><v>1</v></c><c t="inlineStr"><is><t>12,50 EUR</t></is></c></row>
<row></row>
</sheetData></worksheet>`,
		"xl/worksheets/sheet2.xml": `<worksheet><sheetData/></worksheet>`,
	}))

	doc := quietReader(nil).Read(context.Background(), path)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "=== Sheet: Preisblatt ===\nPosition | Einheitspreis\n1 | 12,50 EUR", doc.Text)
	assert.Equal(t, "2", doc.Metadata["sheet_count"])
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()
	r := quietReader(nil)

	doc := r.Read(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Contains(t, doc.Error, "missing.txt")
	assert.False(t, doc.Successful())

	pdf := writeFile(t, dir, "a.pdf", []byte("%PDF-1.4"))
	doc = r.Read(context.Background(), pdf)
	assert.Contains(t, doc.Error, "unsupported format .pdf")

	notZip := writeFile(t, dir, "b.docx", []byte("not a zip"))
	doc = r.Read(context.Background(), notZip)
	assert.Contains(t, doc.Error, "open office archive")

	empty := writeFile(t, dir, "c.txt", []byte("  \n"))
	doc = r.Read(context.Background(), empty)
	assert.Empty(t, doc.Error)
	assert.False(t, doc.Successful())
}

func TestRead_Tika(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, "\n  Leistungsverzeichnis Los 1\n")
	}))
	t.Cleanup(srv.Close)

	path := writeFile(t, t.TempDir(), "lv.pdf", []byte("%PDF-1.4 body"))
	doc := quietReader(NewTikaClient(srv.URL+"/", 0)).Read(context.Background(), path)
	require.True(t, doc.Successful(), doc.Error)
	assert.Equal(t, "Leistungsverzeichnis Los 1", doc.Text)
	assert.Equal(t, "tika", doc.Method)
	assert.Equal(t, "%PDF-1.4 body", string(gotBody))
}

func TestRead_TikaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unprocessable", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	path := writeFile(t, t.TempDir(), "lv.doc", []byte("x"))
	doc := quietReader(NewTikaClient(srv.URL, 0)).Read(context.Background(), path)
	assert.Contains(t, doc.Error, "HTTP 422")
}

func TestReadAll(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("a"))
	b := writeFile(t, dir, "b.txt", []byte("b"))

	docs := quietReader(nil).ReadAll(context.Background(), []string{a, b})
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Text)
	assert.Equal(t, "b", docs[1].Text)
}

func TestRead_GAEBAndFormXML(t *testing.T) {
	dir := t.TempDir()
	r := quietReader(nil)
	for _, name := range []string{"lv.x83", "lv.d83", "antrag.aiform", "formular.aidoc", "vorlage.aidocdef", "style.xsl"} {
		path := writeFile(t, dir, name, []byte(`<GAEB><Item RNoPart="01"><Text>Erdarbeiten</Text></Item></GAEB>`))
		doc := r.Read(context.Background(), path)
		require.True(t, doc.Successful(), "%s: %s", name, doc.Error)
		assert.Equal(t, "xml", doc.Method, name)
		assert.Equal(t, "Item@RNoPart: 01\nText: Erdarbeiten", doc.Text, name)
	}

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 6)
}

func TestExtractArchives(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "unterlagen.zip", zipBytes(t, map[string]string{
		"anschreiben.txt":       "Bitte Angebot abgeben.",
		"formblaetter/f124.txt": "Eigenerklärung",
		"formblaetter/leer/":    "",
		"leistungsverz/lv.x83":  "<GAEB/>",
	}))
	writeFile(t, dir, "los2/nachtrag.ZIP", zipBytes(t, map[string]string{"n.txt": "Nachtrag"}))
	writeFile(t, dir, ".tender_state/backup.zip", zipBytes(t, map[string]string{"x.txt": "x"}))

	extracted, err := ExtractArchives(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "unterlagen"), filepath.Join(dir, "los2", "nachtrag")}, extracted)

	body, err := os.ReadFile(filepath.Join(dir, "unterlagen", "formblaetter", "f124.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Eigenerklärung", string(body))
	assert.DirExists(t, filepath.Join(dir, "unterlagen", "formblaetter", "leer"))
	assert.FileExists(t, filepath.Join(dir, "los2", "nachtrag", "n.txt"))
	assert.NoDirExists(t, filepath.Join(dir, ".tender_state", "backup"))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Contains(t, files, filepath.Join(dir, "unterlagen", "leistungsverz", "lv.x83"))

	// Already unpacked archives are left alone.
	require.NoError(t, os.Remove(filepath.Join(dir, "unterlagen", "anschreiben.txt")))
	extracted, err = ExtractArchives(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, extracted)
	assert.NoFileExists(t, filepath.Join(dir, "unterlagen", "anschreiben.txt"))
}

func TestExtractArchives_BadArchives(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kaputt.zip", []byte("not a zip"))
	writeFile(t, dir, "evil.zip", zipBytes(t, map[string]string{"../escaped.txt": "x"}))

	extracted, err := ExtractArchives(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Empty(t, extracted)
	assert.NoDirExists(t, filepath.Join(dir, "kaputt"))
	assert.NoDirExists(t, filepath.Join(dir, "evil"))
	assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
}
