package serde

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"sigs.k8s.io/yaml"

	"github.com/cambium-dev/cambium/pkg/converter"
)

// NewJSONToYAML converts a JSON document to YAML.
func NewJSONToYAML() converter.Converter {
	return newFuncConverter("serde", "json", "yaml", func(input []byte) ([]byte, error) {
		out, err := yaml.JSONToYAML(input)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return out, nil
	})
}

// NewYAMLToJSON converts a YAML document to JSON.
func NewYAMLToJSON() converter.Converter {
	return newFuncConverter("serde", "yaml", "json", func(input []byte) ([]byte, error) {
		out, err := yaml.YAMLToJSON(input)
		if err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return out, nil
	})
}

// NewJSONToNDJSON flattens a top-level JSON array into newline-delimited
// JSON, one compact element per line. A non-array document becomes a single
// line.
func NewJSONToNDJSON() converter.Converter {
	return newFuncConverter("serde", "json", "ndjson", func(input []byte) ([]byte, error) {
		doc := gjson.ParseBytes(input)
		if !gjson.ValidBytes(input) {
			return nil, fmt.Errorf("invalid JSON")
		}
		var buf bytes.Buffer
		if doc.IsArray() {
			for _, elem := range doc.Array() {
				buf.WriteString(elem.Raw)
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(doc.Raw)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	})
}

// NewNDJSONToJSON gathers newline-delimited JSON back into a top-level
// array. Blank lines are skipped; every other line must be a valid document.
func NewNDJSONToJSON() converter.Converter {
	return newFuncConverter("serde", "ndjson", "json", func(input []byte) ([]byte, error) {
		var elems []string
		scanner := bufio.NewScanner(bytes.NewReader(input))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if !gjson.Valid(text) {
				return nil, fmt.Errorf("invalid JSON on line %d", line)
			}
			elems = append(elems, text)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return []byte("[" + strings.Join(elems, ",") + "]"), nil
	})
}

// NewBase64Encoder encodes raw bytes as standard base64.
func NewBase64Encoder() converter.Converter {
	return newFuncConverter("serde", "raw", "base64", func(input []byte) ([]byte, error) {
		out := make([]byte, base64.StdEncoding.EncodedLen(len(input)))
		base64.StdEncoding.Encode(out, input)
		return out, nil
	})
}

// NewBase64Decoder decodes standard base64 back to raw bytes.
func NewBase64Decoder() converter.Converter {
	return newFuncConverter("serde", "base64", "raw", func(input []byte) ([]byte, error) {
		out, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(input)))
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return out, nil
	})
}

// NewHexEncoder encodes raw bytes as lowercase hex.
func NewHexEncoder() converter.Converter {
	return newFuncConverter("serde", "raw", "hex", func(input []byte) ([]byte, error) {
		out := make([]byte, hex.EncodedLen(len(input)))
		hex.Encode(out, input)
		return out, nil
	})
}

// NewHexDecoder decodes hex back to raw bytes.
func NewHexDecoder() converter.Converter {
	return newFuncConverter("serde", "hex", "raw", func(input []byte) ([]byte, error) {
		out, err := hex.DecodeString(strings.TrimSpace(string(input)))
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return out, nil
	})
}
