// Package loader reads source documents from disk for ingestion.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

var headingRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

// LoadDir walks root and loads every markdown or plain-text file into a
// Document. Hidden files and directories are skipped. Document IDs are a
// stable hash of the path relative to root, so re-ingesting the same tree
// produces the same IDs.
func LoadDir(root string) ([]domain.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loader: %s is not a directory", root)
	}

	var docs []domain.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !supportedExt(name) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, domain.Document{
			ID:      hashString(rel),
			Source:  rel,
			Title:   titleOf(name, content),
			Content: content,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return docs, nil
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// titleOf uses the first markdown heading when present, otherwise the file
// name without its extension.
func titleOf(name, content string) string {
	if m := headingRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
