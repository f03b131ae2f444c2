package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dyluth/frontdesk/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// templates maps embedded templates to their output names.
var templates = []struct {
	template string
	path     string
}{
	{"templates/frontdesk.yml.tmpl", config.DefaultPath},
	{"templates/env.example.tmpl", ".env.example"},
}

// Initialize writes frontdesk.yml and .env.example into dir and returns the
// paths written. If force is true, existing files are overwritten.
func Initialize(dir string, force bool) ([]string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	files, err := getTemplateFiles(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var written []string
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		written = append(written, file.Path)
	}

	// The template must stay loadable as config evolves.
	if _, err := config.Load(filepath.Join(dir, config.DefaultPath)); err != nil {
		return written, fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}

	return written, nil
}

func getTemplateFiles(dir string) ([]FileInfo, error) {
	files := make([]FileInfo, 0, len(templates))
	for _, t := range templates {
		content, err := templatesFS.ReadFile(t.template)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", t.path, err)
		}
		files = append(files, FileInfo{
			Path:        filepath.Join(dir, t.path),
			Content:     content,
			Permissions: 0644,
		})
	}
	return files, nil
}

// PrintSuccess prints the created files and next steps.
func PrintSuccess(w io.Writer, written []string) {
	fmt.Fprintln(w, "\n✅ Successfully initialized Frontdesk configuration!")
	fmt.Fprintln(w, "\nCreated:")
	for _, path := range written {
		fmt.Fprintf(w, "  ✓ %s\n", path)
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Point redis.url at your Redis, or copy .env.example to .env")
	fmt.Fprintln(w, "  2. Run 'frontdesk serve' to start the supervisor API and sweeper")
	fmt.Fprintln(w, "  3. Run 'frontdesk ask \"<question>\" --caller <phone>' to try it")
}
