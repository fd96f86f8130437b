// Package model defines the document content model shared by the extract,
// translate and reassemble stages: formats, addressable units and bundles.
package model

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is the closed set of document families the pipeline handles.
// The string values are the file_type values used on the wire.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatWord  Format = "word"
)

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatExcel, FormatWord:
		return true
	}
	return false
}

// ParseFormat converts a wire file_type value into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", Unsupported(s)
	}
	return f, nil
}

// FormatFromFilename dispatches on the file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".xlsx", ".xls":
		return FormatExcel, nil
	case ".docx", ".doc":
		return FormatWord, nil
	}
	return "", Unsupported(ext)
}

// MediaType returns the media type of documents produced for f.
func (f Format) MediaType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatWord:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

// Extension returns the extension of documents produced for f.
func (f Format) Extension() string {
	switch f {
	case FormatPDF:
		return ".pdf"
	case FormatExcel:
		return ".xlsx"
	case FormatWord:
		return ".docx"
	}
	return ""
}

// Container identifies the physical file container, independent of the
// file name. Legacy Office files share the OLE2 compound container.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerPDF
	ContainerZip
	ContainerOLE2
)

var (
	magicPDF  = []byte("%PDF-")
	magicZip  = []byte("PK\x03\x04")
	magicOLE2 = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// SniffContainer inspects the leading bytes of data.
func SniffContainer(data []byte) Container {
	switch {
	case bytes.HasPrefix(data, magicPDF):
		return ContainerPDF
	case bytes.HasPrefix(data, magicZip):
		return ContainerZip
	case bytes.HasPrefix(data, magicOLE2):
		return ContainerOLE2
	}
	return ContainerUnknown
}

func (c Container) String() string {
	switch c {
	case ContainerPDF:
		return "pdf"
	case ContainerZip:
		return "zip"
	case ContainerOLE2:
		return "ole2"
	}
	return "unknown"
}
