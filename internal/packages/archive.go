package packages

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

// File is one regular file of a package archive, decoded to text.
type File struct {
	Path string `msgpack:"path"`
	Text string `msgpack:"text"`
}

// Archive is the extracted content of a package.
type Archive struct {
	Files []File `msgpack:"files"`
}

func malformed(format string, args ...any) error {
	return &diag.PackageError{Kind: diag.MalformedArchive, Message: fmt.Sprintf(format, args...)}
}

// Extract reads a gzip-compressed tar stream. Only regular files are kept.
// Their contents are decoded as UTF-8, dropping a leading byte order mark
// and replacing invalid sequences.
func Extract(data []byte) (*Archive, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed("not a gzip stream: %v", err)
	}
	defer gz.Close()

	decoder := unicode.UTF8BOM.NewDecoder()
	tr := tar.NewReader(gz)
	archive := &Archive{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed("reading tar entry: %v", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, err := entryPath(hdr.Name)
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(tr)
		if err != nil {
			return nil, malformed("reading %s: %v", hdr.Name, err)
		}
		text, err := decoder.Bytes(raw)
		if err != nil {
			return nil, malformed("decoding %s: %v", hdr.Name, err)
		}
		archive.Files = append(archive.Files, File{Path: name, Text: string(text)})
	}
	return archive, nil
}

func entryPath(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", malformed("entry path %q is not valid utf-8", name)
	}
	clean := path.Clean("/" + strings.TrimPrefix(name, "./"))
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", malformed("entry path %q escapes the package root", name)
		}
	}
	if clean == "/" {
		return "", malformed("entry path %q is empty", name)
	}
	return clean, nil
}

// Buffers turns the archive into source buffers scoped to spec.
func (a *Archive) Buffers(spec source.PackageSpec) []*source.Buffer {
	out := make([]*source.Buffer, 0, len(a.Files))
	for _, f := range a.Files {
		out = append(out, source.NewBuffer(source.PackageFile(spec, f.Path), f.Text))
	}
	return out
}

// Lookup returns the text of the file at p.
func (a *Archive) Lookup(p string) (string, bool) {
	p = path.Clean("/" + p)
	for _, f := range a.Files {
		if f.Path == p {
			return f.Text, true
		}
	}
	return "", false
}
