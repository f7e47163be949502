// Package diag holds the error taxonomy shared by the store, the package
// resolver and the compiler boundary, plus the diagnostics payload.
package diag

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Sentinels for errors.Is. Every FileError and PackageError matches exactly
// one of them.
var (
	ErrNotFound     = errors.New("file not found")
	ErrAccessDenied = errors.New("access denied")
	ErrIsDirectory  = errors.New("is a directory")
	ErrNotSource    = errors.New("not a source file")
	ErrInvalidUTF8  = errors.New("file is not valid utf-8")

	ErrPackageNotFound  = errors.New("package not found")
	ErrVersionNotFound  = errors.New("package version not found")
	ErrNetworkFailed    = errors.New("failed to download package")
	ErrMalformedArchive = errors.New("malformed package archive")
	ErrPackageOther     = errors.New("failed to load package")
)

type FileErrorKind int

const (
	NotFound FileErrorKind = iota
	AccessDenied
	IsDirectory
	NotSource
	InvalidUTF8
	PackageFailed
)

var fileSentinels = map[FileErrorKind]error{
	NotFound:     ErrNotFound,
	AccessDenied: ErrAccessDenied,
	IsDirectory:  ErrIsDirectory,
	NotSource:    ErrNotSource,
	InvalidUTF8:  ErrInvalidUTF8,
}

// FileError is a file-system shaped failure. A file inside a package that
// could not be loaded carries the PackageError that caused it.
type FileError struct {
	Kind    FileErrorKind
	Path    string
	Package *PackageError
}

func (e *FileError) Error() string {
	if e.Kind == PackageFailed && e.Package != nil {
		return e.Package.Error()
	}
	if s, ok := fileSentinels[e.Kind]; ok {
		if e.Path == "" {
			return s.Error()
		}
		return fmt.Sprintf("%s: %s", s, e.Path)
	}
	return fmt.Sprintf("file error: %s", e.Path)
}

func (e *FileError) Is(target error) bool {
	return fileSentinels[e.Kind] == target
}

func (e *FileError) Unwrap() error {
	if e.Package == nil {
		return nil
	}
	return e.Package
}

// NewFileError is shorthand for a FileError without a package cause.
func NewFileError(kind FileErrorKind, path string) *FileError {
	return &FileError{Kind: kind, Path: path}
}

type PackageErrorKind int

const (
	PackageNotFound PackageErrorKind = iota
	VersionNotFound
	NetworkFailed
	MalformedArchive
	PackageOther
)

var packageSentinels = map[PackageErrorKind]error{
	PackageNotFound:  ErrPackageNotFound,
	VersionNotFound:  ErrVersionNotFound,
	NetworkFailed:    ErrNetworkFailed,
	MalformedArchive: ErrMalformedArchive,
	PackageOther:     ErrPackageOther,
}

// PackageError describes why a package could not be made available.
type PackageError struct {
	Kind PackageErrorKind
	// Spec is the package identity as written in source, e.g. @preview/foo:0.1.0.
	Spec    string
	Message string
	Err     error
}

func (e *PackageError) Error() string {
	msg := packageSentinels[e.Kind].Error()
	if e.Spec != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Spec)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PackageError) Is(target error) bool {
	return packageSentinels[e.Kind] == target
}

func (e *PackageError) Unwrap() error { return e.Err }

// Error is the generic failure for structural and precondition problems. It
// records where it was raised.
type Error struct {
	Message  string
	Location string
}

func (e *Error) Error() string {
	if e.Location == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Location)
}

// Errorf builds an Error located at its caller.
func Errorf(format string, args ...any) *Error {
	loc := ""
	if _, file, line, ok := runtime.Caller(1); ok {
		loc = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return &Error{Message: fmt.Sprintf(format, args...), Location: loc}
}
