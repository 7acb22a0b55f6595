// Package serde ships the structured-data converter pack: conversions
// between human-readable serialization formats plus byte-encoding
// round-trips. Every converter here is One→One and safe for concurrent use.
package serde

import (
	"context"
	"fmt"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
	"github.com/cambium-dev/cambium/pkg/registry"
)

// RegisterAll registers the full serde pack.
func RegisterAll(reg *registry.Registry) error {
	packs := []converter.Converter{
		NewJSONToYAML(),
		NewYAMLToJSON(),
		NewJSONToNDJSON(),
		NewNDJSONToJSON(),
		NewBase64Encoder(),
		NewBase64Decoder(),
		NewHexEncoder(),
		NewHexDecoder(),
	}
	for _, c := range packs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// funcConverter adapts a plain transform function to the converter contract.
// The output bag is the input bag with format rewritten to the target.
type funcConverter struct {
	decl      *converter.Decl
	to        string
	transform func(input []byte) ([]byte, error)
}

func newFuncConverter(group, from, to string, transform func([]byte) ([]byte, error)) *funcConverter {
	id := fmt.Sprintf("%s.%s-to-%s", group, from, to)
	decl := converter.NewDecl(id, pattern.Format(from), pattern.Format(to)).
		WithDescription(fmt.Sprintf("Convert %s to %s", from, to)).
		WithCost("speed", 0.1).
		WithCost("size", 0.5).
		WithCost("quality_loss", 0)
	return &funcConverter{decl: decl, to: to, transform: transform}
}

func (c *funcConverter) Decl() *converter.Decl { return c.decl }

func (c *funcConverter) Convert(ctx context.Context, input []byte, props *property.Properties) (*converter.Output, error) {
	out, err := c.transform(input)
	if err != nil {
		return nil, err
	}
	outProps := props.Clone().With(property.KeyFormat, property.String(c.to))
	return converter.Single(out, outProps), nil
}
