package build

import (
	"io"
	"os"
	"path/filepath"

	"github.com/Y006/phd-site/internal/errors"
)

// CopyFile copies src to dst verbatim, preserving the file mode and
// modification time.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.NewIOError(src, "stat source file", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.NewIOError(src, "opening source file", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.NewIOError(dst, "creating output file", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.NewIOError(dst, "copying file contents", err)
	}
	if err := out.Close(); err != nil {
		return errors.NewIOError(dst, "closing output file", err)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errors.NewIOError(dst, "preserving modification time", err)
	}
	return nil
}

// CopyAssets copies the static assets directory wholesale into the output
// root, deleting any previous copy first. A missing assets directory is
// not an error.
func CopyAssets(assetsDir, outputDir string) error {
	info, err := os.Stat(assetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewIOError(assetsDir, "stat assets directory", err)
	}
	if !info.IsDir() {
		return errors.NewIOError(assetsDir, "assets path is not a directory", nil)
	}

	dst := filepath.Join(outputDir, filepath.Base(assetsDir))
	if err := os.RemoveAll(dst); err != nil {
		return errors.NewIOError(dst, "removing previous assets copy", err)
	}

	return filepath.Walk(assetsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.NewIOError(path, "walking assets directory", err)
		}
		rel, err := filepath.Rel(assetsDir, path)
		if err != nil {
			return errors.NewIOError(path, "resolving asset path", err)
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.NewIOError(target, "creating asset directory", err)
			}
			return nil
		}
		return CopyFile(path, target)
	})
}

// readOptional returns the file's contents, or "" when it does not exist.
func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.NewIOError(path, "reading optional file", err)
	}
	return string(data), nil
}
