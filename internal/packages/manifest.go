package packages

import (
	"errors"
	"fmt"
	"path"

	"github.com/BurntSushi/toml"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

// ManifestFile is the package manifest's path inside an archive.
const ManifestFile = "/typst.toml"

type Manifest struct {
	Package PackageInfo `toml:"package"`
}

type PackageInfo struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Entrypoint  string   `toml:"entrypoint"`
	Authors     []string `toml:"authors"`
	License     string   `toml:"license"`
	Description string   `toml:"description"`
	Compiler    string   `toml:"compiler"`
}

// ParseManifest decodes typst.toml. A missing entrypoint defaults to lib.typ.
func ParseManifest(text string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(text, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	if m.Package.Entrypoint == "" {
		m.Package.Entrypoint = "lib.typ"
	}
	return &m, nil
}

// DefaultManifest stands in for a package that ships no typst.toml.
func DefaultManifest() *Manifest {
	return &Manifest{Package: PackageInfo{Entrypoint: "lib.typ"}}
}

// Manifest reads the archive's manifest.
func (a *Archive) Manifest() (*Manifest, error) {
	text, ok := a.Lookup(ManifestFile)
	if !ok {
		return DefaultManifest(), nil
	}
	return ParseManifest(text)
}

// ReadManifest loads the manifest of a resolved package through read,
// falling back to DefaultManifest the same way Archive.Manifest does.
func ReadManifest(spec source.PackageSpec, read func(source.FileID) ([]byte, error)) (*Manifest, error) {
	data, err := read(source.PackageFile(spec, ManifestFile))
	if errors.Is(err, diag.ErrNotFound) {
		return DefaultManifest(), nil
	} else if err != nil {
		return nil, err
	}
	return ParseManifest(string(data))
}

// Validate checks that the manifest describes spec.
func (m *Manifest) Validate(spec source.PackageSpec) error {
	if m.Package.Name != "" && m.Package.Name != spec.Name {
		return &diag.PackageError{Kind: diag.PackageOther, Spec: spec.String(),
			Message: fmt.Sprintf("manifest names package %q", m.Package.Name)}
	}
	if m.Package.Version != "" {
		v, err := source.ParsePackageSpec(fmt.Sprintf("@%s/%s:%s", spec.Namespace, spec.Name, m.Package.Version))
		if err != nil || v.Version != spec.Version {
			return &diag.PackageError{Kind: diag.PackageOther, Spec: spec.String(),
				Message: fmt.Sprintf("manifest declares version %q", m.Package.Version)}
		}
	}
	return nil
}

// EntrypointID is the file the package's import evaluates.
func (m *Manifest) EntrypointID(spec source.PackageSpec) source.FileID {
	return source.PackageFile(spec, path.Clean("/"+m.Package.Entrypoint))
}
