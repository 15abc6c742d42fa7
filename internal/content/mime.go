package content

import (
	"mime"
	"path/filepath"
	"strings"
)

// knownTypes is consulted before the platform table so the common source
// types resolve identically on every machine.
var knownTypes = map[string]string{
	".md":        "text/markdown",
	".py":        "text/x-python",
	".sh":        "application/x-sh",
	".yaml":      "text/x-yaml",
	".yml":       "text/x-yaml",
	".toml":      "application/toml",
	".rs":        "text/rust",
	".go":        "text/x-go",
	".js":        "text/javascript",
	".ts":        "text/typescript",
	".java":      "text/x-java-source",
	".c":         "text/x-c",
	".h":         "text/x-c",
	".cpp":       "text/x-c++src",
	".hpp":       "text/x-c++src",
	".cs":        "text/x-csharp",
	".rb":        "text/x-ruby",
	".php":       "text/x-php",
	".json":      "application/json",
	".xml":       "application/xml",
	".html":      "text/html",
	".css":       "text/css",
	".ini":       "text/plain",
	".cfg":       "text/plain",
	".txt":       "text/plain",
	"makefile":   "text/plain",
	"dockerfile": "text/plain",
}

// GuessType returns the MIME type for name, or "" when unknown.
func GuessType(name string) string {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	if t, ok := knownTypes[ext]; ok && ext != "" {
		return t
	}
	if t, ok := knownTypes[strings.ToLower(base)]; ok {
		return t
	}
	if ext == "" {
		return ""
	}
	t := mime.TypeByExtension(ext)
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return ""
}

// GuessSubtype returns the part after '/' of GuessType, or "".
func GuessSubtype(name string) string {
	t := GuessType(name)
	if i := strings.LastIndex(t, "/"); i >= 0 {
		return t[i+1:]
	}
	return t
}
