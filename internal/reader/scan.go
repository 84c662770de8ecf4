// Package reader turns tender files on disk into model.Document values.
package reader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile holds gitignore-style patterns, relative to the scanned
// directory, for files that should not be processed.
const IgnoreFile = ".tenderignore"

// StateDir is where tendergraph keeps its own files inside a tender folder.
const StateDir = ".tender_state"

// SupportedExtensions lists the file extensions Scan picks up.
var SupportedExtensions = []string{
	".pdf", ".docx", ".doc", ".xlsx", ".xls", ".xml", ".txt", ".md",
	".csv", ".json", ".html", ".htm", ".odt", ".rtf",
	".x83", ".d83", ".xsl", ".aidoc", ".aidocdef", ".aiform",
}

// IsSupported reports whether path has a supported extension.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Scan returns the absolute paths of all supported files below dir, sorted.
// Hidden directories, the state directory and anything matched by
// .tenderignore are skipped.
func Scan(dir string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New(root + " is not a directory")
	}

	var gi *ignore.GitIgnore
	if _, err := os.Stat(filepath.Join(root, IgnoreFile)); err == nil {
		gi, err = ignore.CompileIgnoreFile(filepath.Join(root, IgnoreFile))
		if err != nil {
			return nil, err
		}
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if path != root && (d.Name() == StateDir || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			if gi != nil && path != root && gi.MatchesPath(filepath.ToSlash(rel)+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		if gi != nil && gi.MatchesPath(filepath.ToSlash(rel)) {
			return nil
		}
		if IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
