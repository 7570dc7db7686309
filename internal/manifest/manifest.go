// Package manifest generates the directory index page listing every
// output artifact grouped by visibility.
//
// The manifest is regenerated on every run regardless of the incremental
// cache: it is cheap and must reflect the latest full file set even when
// zero files changed. Protected entries are listed before public ones,
// preserving discovery order within each group.
package manifest

import (
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Y006/phd-site/internal/errors"
	"github.com/Y006/phd-site/internal/scanner"
)

// Entry is one manifest line item.
type Entry struct {
	// Name is the display name shown for the link.
	Name string
	// Href is the link target relative to the output root.
	Href string
	// Public marks the visibility badge.
	Public bool
}

// Data is the input to the manifest template.
type Data struct {
	Title     string
	Subtitle  string
	Style     template.CSS
	Protected []Entry
	Public    []Entry
	BuiltAt   time.Time
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
{{.Style}}
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{.Title}}</h1>
            <p>{{.Subtitle}}</p>
        </header>
{{- if .Protected}}
        <section class="file-section">
            <h2>Protected documents</h2>
            <ul class="file-list">
{{- range .Protected}}
                <li>
                    <a href="{{.Href}}">
                        <span class="file-name">{{.Name}}</span>
                        <span class="file-status status-lock">&#128274; Protected</span>
                    </a>
                </li>
{{- end}}
            </ul>
        </section>
{{- end}}
{{- if .Public}}
        <section class="file-section">
            <h2>Public documents</h2>
            <ul class="file-list">
{{- range .Public}}
                <li>
                    <a href="{{.Href}}" class="is-public">
                        <span class="file-name">{{.Name}}</span>
                        <span class="file-status status-public">&#127760; Public</span>
                    </a>
                </li>
{{- end}}
            </ul>
        </section>
{{- end}}
        <footer>
            <p>Built {{.BuiltAt.Format "2006-01-02 15:04:05"}}</p>
        </footer>
    </div>
</body>
</html>
`

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// FromFiles partitions the listed source files into manifest entries,
// preserving discovery order within each visibility group. Display names
// are recomputed from the files so heading edits are reflected.
func FromFiles(files []scanner.SourceFile) (protected, public []Entry) {
	for _, sf := range files {
		if !sf.Listed() {
			continue
		}
		entry := Entry{
			Name:   scanner.DisplayName(sf),
			Href:   filepath.ToSlash(sf.OutputRel),
			Public: sf.Visibility == scanner.VisibilityPublic,
		}
		if entry.Public {
			public = append(public, entry)
		} else {
			protected = append(protected, entry)
		}
	}
	return protected, public
}

// Render writes the manifest document to w.
func Render(w io.Writer, data Data) error {
	if data.BuiltAt.IsZero() {
		data.BuiltAt = time.Now()
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		return errors.NewRenderError("index.html", "executing manifest template", err)
	}
	return nil
}

// Write renders the manifest to path.
func Write(path string, data Data) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIOError(path, "creating manifest", err)
	}
	if err := Render(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewIOError(path, "closing manifest", err)
	}
	return nil
}
