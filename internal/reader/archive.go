package reader

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ExtractArchives unpacks every .zip below dir into a sibling directory
// named after the archive (unterlagen.zip into unterlagen/). Archives whose
// directory already exists are left alone. A failed archive is logged and
// its partial directory removed so the next run tries again. It returns the
// directories created.
func ExtractArchives(dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var archives []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (d.Name() == StateDir || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".zip") {
			archives = append(archives, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var extracted []string
	for _, archive := range archives {
		dest := strings.TrimSuffix(archive, filepath.Ext(archive))
		if _, err := os.Stat(dest); err == nil {
			logger.Debug("archive already extracted", "archive", filepath.Base(archive))
			continue
		}
		if err := unzip(archive, dest); err != nil {
			logger.Error("archive extraction failed", "archive", filepath.Base(archive), "err", err)
			_ = os.RemoveAll(dest)
			continue
		}
		logger.Info("archive extracted", "archive", filepath.Base(archive), "dir", dest)
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func unzip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(entryName(f)))
		if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes the archive directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeEntry(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

// entryName decodes names stored without the UTF-8 flag, which Windows
// tools write in code page 437.
func entryName(f *zip.File) string {
	if !f.NonUTF8 {
		return f.Name
	}
	name, err := charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return name
}

func writeEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
