package source

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// PackageSpec identifies a versioned package in a registry namespace. The
// zero value means "no package".
type PackageSpec struct {
	Namespace string
	Name      string
	Version   string
}

func (s PackageSpec) IsZero() bool {
	return s == PackageSpec{}
}

func (s PackageSpec) String() string {
	if s.IsZero() {
		return ""
	}
	return fmt.Sprintf("@%s/%s:%s", s.Namespace, s.Name, s.Version)
}

// ParsePackageSpec parses "@namespace/name:major.minor.patch". The version is
// canonicalized so that "1.02.0" and "1.2.0" name the same package.
func ParsePackageSpec(s string) (PackageSpec, error) {
	rest, ok := strings.CutPrefix(s, "@")
	if !ok {
		return PackageSpec{}, fmt.Errorf("package specification must start with '@': %q", s)
	}
	namespace, rest, ok := strings.Cut(rest, "/")
	if !ok || !isIdent(namespace) {
		return PackageSpec{}, fmt.Errorf("package specification is missing a valid namespace: %q", s)
	}
	name, version, ok := strings.Cut(rest, ":")
	if !ok || !isIdent(name) {
		return PackageSpec{}, fmt.Errorf("package specification is missing a valid name: %q", s)
	}
	v, err := canonicalVersion(version)
	if err != nil {
		return PackageSpec{}, fmt.Errorf("package specification %q: %w", s, err)
	}
	return PackageSpec{Namespace: namespace, Name: name, Version: v}, nil
}

func canonicalVersion(v string) (string, error) {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("version %q must have the form major.minor.patch", v)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return "", fmt.Errorf("version %q has an invalid component %q", v, p)
		}
		parts[i] = strconv.FormatUint(n, 10)
	}
	return strings.Join(parts, "."), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}

// FileID addresses one source buffer: an optional package scope plus a
// rooted virtual path. FileIDs are comparable and safe as map keys.
type FileID struct {
	Package PackageSpec
	Path    string
}

// ID returns the identifier of a file outside any package.
func ID(p string) FileID {
	return FileID{Path: cleanPath(p)}
}

// PackageFile returns the identifier of a file inside spec.
func PackageFile(spec PackageSpec, p string) FileID {
	return FileID{Package: spec, Path: cleanPath(p)}
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

func (id FileID) IsZero() bool {
	return id == FileID{}
}

// InPackage reports whether id is scoped to a package.
func (id FileID) InPackage() bool {
	return !id.Package.IsZero()
}

func (id FileID) String() string {
	if id.InPackage() {
		return id.Package.String() + id.Path
	}
	return id.Path
}

// Join resolves p relative to id. An absolute p is taken from the root of
// id's package (or the project root).
func (id FileID) Join(p string) FileID {
	if strings.HasPrefix(p, "/") {
		return FileID{Package: id.Package, Path: cleanPath(p)}
	}
	return FileID{Package: id.Package, Path: cleanPath(path.Join(path.Dir(id.Path), p))}
}

// Ext returns the file extension without the dot.
func (id FileID) Ext() string {
	return strings.TrimPrefix(path.Ext(id.Path), ".")
}
