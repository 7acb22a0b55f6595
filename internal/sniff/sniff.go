// Package sniff guesses the format property of a file for the CLI. The core
// never sniffs; planning starts from whatever bag the host declares.
package sniff

import (
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// extensions maps well-known file extensions to format names.
var extensions = map[string]string{
	".json":   "json",
	".yaml":   "yaml",
	".yml":    "yaml",
	".ndjson": "ndjson",
	".jsonl":  "ndjson",
	".csv":    "csv",
	".txt":    "text",
	".b64":    "base64",
	".hex":    "hex",
	".zip":    "zip",
	".tar":    "tar",
	".png":    "png",
	".jpg":    "jpg",
	".jpeg":   "jpg",
	".webp":   "webp",
	".gif":    "gif",
}

// FormatForPath returns the format implied by a file extension, or "" when
// the extension is unknown.
func FormatForPath(path string) string {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Detect guesses the format of data at path. The extension wins when it is
// recognized; otherwise the content is probed — currently a strict JSON
// validity check — and the fallback is "raw".
func Detect(path string, data []byte) string {
	if format := FormatForPath(path); format != "" {
		return format
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" && (trimmed[0] == '{' || trimmed[0] == '[') && gjson.Valid(trimmed) {
		return "json"
	}
	return "raw"
}
