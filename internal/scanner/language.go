package scanner

import (
	"strings"
)

// Kind classifies a C input file.
type Kind string

const (
	KindSource Kind = "source"
	KindHeader Kind = "header"
)

// kindMap maps file extensions to input kinds.
var kindMap = map[string]Kind{
	".c": KindSource,
	".h": KindHeader,
}

// DetectKind returns the kind for a file extension, or "" if the file is
// not a C input.
func DetectKind(ext string) Kind {
	return kindMap[strings.ToLower(ext)]
}
