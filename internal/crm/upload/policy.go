// Package upload is the file transfer proxy: it validates incoming files
// against a per-context policy, names the stored object and streams the bytes
// to a blob store.
package upload

import (
	"fmt"
	"strings"

	e "github.com/gartstein/staffing/internal/crm/errors"
)

// Accepted document types.
const (
	TypePDF  = "application/pdf"
	TypeDOC  = "application/msword"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// Wildcard accepts any content type.
	Wildcard = "*/*"
)

const mb = 1024 * 1024

// Context names the place an upload comes from. Each context has one policy.
type Context string

const (
	// ContextGeneric is the default picker in forms.
	ContextGeneric Context = "generic"
	// ContextResume is the resume picker of the resource form.
	ContextResume Context = "resume"
	// ContextEndpoint is the authenticated POST /api/upload endpoint.
	ContextEndpoint Context = "endpoint"
	// ContextAttachment is the file manager and record attachments.
	ContextAttachment Context = "attachment"
)

// KeyStyle selects how object keys are built.
type KeyStyle string

const (
	// KeyUserScoped yields {folder}/{userId}/{ts}-{name}.
	KeyUserScoped KeyStyle = "user"
	// KeyFlat yields {folder}/{ts}_{name}.
	KeyFlat KeyStyle = "flat"
)

// Policy bounds one upload context.
type Policy struct {
	Context  Context  `yaml:"-" toml:"-"`
	MaxBytes int64    `yaml:"max_bytes" toml:"max_bytes"`
	Accept   []string `yaml:"accept" toml:"accept"`
	// Folder is the default key prefix. Empty means derive from the owner
	// entity type.
	Folder   string   `yaml:"folder" toml:"folder"`
	KeyStyle KeyStyle `yaml:"key_style" toml:"key_style"`
}

// AcceptsAll reports whether the policy skips the type check.
func (p Policy) AcceptsAll() bool {
	for _, a := range p.Accept {
		if a == Wildcard {
			return true
		}
	}
	return false
}

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() map[Context]Policy {
	docs := []string{TypePDF, TypeDOC, TypeDOCX}
	return map[Context]Policy{
		ContextGeneric: {
			Context: ContextGeneric, MaxBytes: 5 * mb, Accept: docs, KeyStyle: KeyFlat,
		},
		ContextResume: {
			Context: ContextResume, MaxBytes: 10 * mb, Accept: docs, Folder: "resumes", KeyStyle: KeyUserScoped,
		},
		ContextEndpoint: {
			Context: ContextEndpoint, MaxBytes: 10 * mb, Accept: docs, Folder: "resumes", KeyStyle: KeyUserScoped,
		},
		ContextAttachment: {
			Context: ContextAttachment, MaxBytes: 50 * mb, Accept: []string{Wildcard}, KeyStyle: KeyFlat,
		},
	}
}

// ParseAccept turns a picker accept string such as ".pdf,.doc,.docx" into
// content types. Unknown extensions are kept as filename suffixes.
func ParseAccept(accept string) []string {
	out := []string{}
	for _, a := range strings.Split(accept, ",") {
		a = strings.TrimSpace(a)
		switch a {
		case "":
			continue
		case ".pdf":
			out = append(out, TypePDF)
		case ".doc":
			out = append(out, TypeDOC)
		case ".docx":
			out = append(out, TypeDOCX)
		default:
			out = append(out, a)
		}
	}
	return out
}

// Validate checks a file against p, type first and size second. Exactly
// MaxBytes is accepted. A file is of an accepted type when its content type
// is listed or its name ends with a listed suffix.
func Validate(p Policy, filename, contentType string, size int64) error {
	if !acceptsType(p, filename, contentType) {
		if p.Context == ContextEndpoint {
			return fmt.Errorf("%w: Invalid file type. Only PDF and Word documents are allowed.", e.ErrUnsupportedType)
		}
		return fmt.Errorf("%w: Invalid file type. Accepted types: %s", e.ErrUnsupportedType, strings.Join(p.Accept, ","))
	}
	if size > p.MaxBytes {
		return fmt.Errorf("%w: File size exceeds %s limit", e.ErrFileTooLarge, limitLabel(p.MaxBytes))
	}
	return nil
}

func acceptsType(p Policy, filename, contentType string) bool {
	if p.AcceptsAll() {
		return true
	}
	for _, a := range p.Accept {
		if a == contentType || (strings.HasPrefix(a, ".") && strings.HasSuffix(filename, a)) {
			return true
		}
	}
	return false
}

func limitLabel(n int64) string {
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return FormatFileSize(n)
}
