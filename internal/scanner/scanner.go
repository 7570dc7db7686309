// Package scanner provides source tree discovery and classification for
// the site builder.
//
// The scanner walks the source root, skipping hidden files, and produces
// one SourceFile per regular file with its kind (markdown, HTML, or
// opaque), its visibility (public or protected), and its mapped output
// path. Visibility is decided by path segments: any directory literally
// named "public" on the file's route from the source root makes it
// public. Discovery order is the deterministic lexical order of the walk,
// and downstream consumers (dispatcher, manifest) preserve it.
package scanner

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Y006/phd-site/internal/errors"
)

// FileKind classifies a source file by how it is processed.
type FileKind int

const (
	KindOther FileKind = iota
	KindMarkdown
	KindHTML
)

// String returns the string representation of the file kind.
func (k FileKind) String() string {
	switch k {
	case KindMarkdown:
		return "markdown"
	case KindHTML:
		return "html"
	default:
		return "other"
	}
}

// Visibility classifies a source file as public or protected.
type Visibility int

const (
	VisibilityProtected Visibility = iota
	VisibilityPublic
)

// String returns the string representation of the visibility.
func (v Visibility) String() string {
	if v == VisibilityPublic {
		return "public"
	}
	return "protected"
}

// PublicSegment is the literal directory name that marks a subtree public.
const PublicSegment = "public"

// SourceFile describes one discovered file. It is transient per run; only
// its Path identity is used as a key in the persisted cache and registry.
type SourceFile struct {
	// Path is the file's location including the source root, e.g.
	// "src/notes/a.md". It is the stable identity for cache and
	// registry lookups.
	Path string
	// Rel is the path relative to the source root.
	Rel string
	// Kind is the file-kind classification.
	Kind FileKind
	// Visibility is public or protected.
	Visibility Visibility
	// OutputRel is the output path relative to the output root.
	// Markdown sources map to an .html extension.
	OutputRel string
}

// Listed reports whether the file appears in the manifest. Only markdown
// and HTML files are listed; opaque files are copied but not indexed.
func (sf SourceFile) Listed() bool {
	return sf.Kind == KindMarkdown || sf.Kind == KindHTML
}

// Scan walks root and returns every non-hidden regular file beneath it in
// lexical order. Hidden directories are still descended into; only files
// whose name starts with a dot are excluded.
func Scan(root string) ([]SourceFile, error) {
	var files []SourceFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.NewIOError(path, "walking source tree", err)
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.NewIOError(path, "resolving relative path", err)
		}

		files = append(files, Classify(root, rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Classify builds the SourceFile record for a path relative to root.
func Classify(root, rel string) SourceFile {
	kind := kindOf(rel)
	return SourceFile{
		Path:       filepath.Join(root, rel),
		Rel:        rel,
		Kind:       kind,
		Visibility: visibilityOf(rel),
		OutputRel:  outputRel(rel, kind),
	}
}

// kindOf classifies by extension, case-insensitively.
func kindOf(rel string) FileKind {
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".md":
		return KindMarkdown
	case ".html":
		return KindHTML
	default:
		return KindOther
	}
}

// visibilityOf checks path segments, not substrings: "notes/public/a.md"
// is public, "notes/public.md" is not.
func visibilityOf(rel string) Visibility {
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if segment == PublicSegment {
			return VisibilityPublic
		}
	}
	return VisibilityProtected
}

// outputRel mirrors the source path, rewriting markdown extensions to
// .html.
func outputRel(rel string, kind FileKind) string {
	if kind != KindMarkdown {
		return rel
	}
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
}

// DisplayName derives the human-readable name for a file. For markdown it
// is the first non-blank line's level-1 heading when present, otherwise
// the bare filename without extension. It is recomputed from the file
// each time it is needed so a heading change is picked up on the next
// rebuild.
func DisplayName(sf SourceFile) string {
	stem := strings.TrimSuffix(filepath.Base(sf.Rel), filepath.Ext(sf.Rel))
	if sf.Kind != KindMarkdown {
		return stem
	}

	f, err := os.Open(sf.Path)
	if err != nil {
		return stem
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if title := HeadingTitle(line); title != "" {
			return title
		}
		break
	}
	return stem
}

// HeadingTitle returns the title from a level-1 heading line, or "" when
// the line is not one.
func HeadingTitle(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "# ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "# "))
}
