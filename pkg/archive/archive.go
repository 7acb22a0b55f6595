// Package archive ships the batch converter pack: expanding an archive into
// a batch of member files (one-to-many) and aggregating a batch back into an
// archive (many-to-one). Member order is archive entry order in both
// directions.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/cambium-dev/cambium/internal/sniff"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
	"github.com/cambium-dev/cambium/pkg/registry"
)

// RegisterAll registers the archive pack.
func RegisterAll(reg *registry.Registry) error {
	packs := []converter.Converter{
		NewZipToFiles(),
		NewFilesToTar(),
		NewFilesToZip(),
	}
	for _, c := range packs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ZipToFiles expands a zip archive into a batch of member files, preserving
// entry order. Each member's bag carries its path and a format guessed from
// the extension.
type ZipToFiles struct {
	decl *converter.Decl
}

// NewZipToFiles returns the one-to-many zip expander.
func NewZipToFiles() *ZipToFiles {
	decl := converter.NewDecl(
		"archive.zip-to-files",
		pattern.Format("zip"),
		pattern.New().Eq(property.KeyFormat, property.String("raw")).Present(property.KeyPath),
	).
		WithDescription("Expand a zip archive into its member files").
		WithCardinality(converter.One, converter.Many).
		WithCost("speed", 0.2)
	return &ZipToFiles{decl: decl}
}

func (c *ZipToFiles) Decl() *converter.Decl { return c.decl }

func (c *ZipToFiles) Convert(ctx context.Context, input []byte, props *property.Properties) (*converter.Output, error) {
	reader, err := zip.NewReader(bytes.NewReader(input), int64(len(input)))
	if err != nil {
		return nil, fmt.Errorf("invalid zip archive: %w", err)
	}

	var items []converter.Item
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name, err)
		}

		format := sniff.FormatForPath(file.Name)
		if format == "" {
			format = "raw"
		}
		memberProps := props.Clone().
			With(property.KeyFormat, property.String(format)).
			With(property.KeyPath, property.String(file.Name))
		items = append(items, converter.Item{Data: data, Props: memberProps})
	}
	return converter.Multi(items), nil
}

// aggregator is the shared many-to-one shape of the tar and zip writers.
type aggregator struct {
	decl  *converter.Decl
	to    string
	write func(items []converter.Item) ([]byte, error)
}

func (c *aggregator) Decl() *converter.Decl { return c.decl }

// Convert handles the degenerate single-item call by aggregating a batch of
// one.
func (c *aggregator) Convert(ctx context.Context, input []byte, props *property.Properties) (*converter.Output, error) {
	return c.ConvertBatch(ctx, []converter.Item{{Data: input, Props: props}}, props)
}

func (c *aggregator) ConvertBatch(ctx context.Context, items []converter.Item, shared *property.Properties) (*converter.Output, error) {
	data, err := c.write(items)
	if err != nil {
		return nil, err
	}
	outProps := shared.Clone().With(property.KeyFormat, property.String(c.to))
	outProps.Delete(property.KeyPath)
	return converter.Single(data, outProps), nil
}

// memberName returns the archive entry name for the i-th item: its path
// property when present, a stable synthetic name otherwise.
func memberName(item converter.Item, i int) string {
	if path, ok := item.Props.GetString(property.KeyPath); ok && path != "" {
		return path
	}
	return fmt.Sprintf("item-%04d", i)
}

// NewFilesToTar returns the many-to-one tar aggregator. Entries appear in
// batch order.
func NewFilesToTar() converter.BatchConverter {
	decl := converter.NewDecl(
		"archive.files-to-tar",
		pattern.New(),
		pattern.New().Eq(property.KeyFormat, property.String("tar")).Absent(property.KeyPath),
	).
		WithDescription("Aggregate a batch of files into a tar archive").
		WithCardinality(converter.Many, converter.One).
		WithCost("speed", 0.2)

	return &aggregator{decl: decl, to: "tar", write: func(items []converter.Item) ([]byte, error) {
		var buf bytes.Buffer
		tw := tar.NewWriter(&buf)
		for i := range items {
			hdr := &tar.Header{
				Name: memberName(items[i], i),
				Mode: 0o644,
				Size: int64(len(items[i].Data)),
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return nil, err
			}
			if _, err := tw.Write(items[i].Data); err != nil {
				return nil, err
			}
		}
		if err := tw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}}
}

// NewFilesToZip returns the many-to-one zip aggregator. Entries appear in
// batch order.
func NewFilesToZip() converter.BatchConverter {
	decl := converter.NewDecl(
		"archive.files-to-zip",
		pattern.New(),
		pattern.New().Eq(property.KeyFormat, property.String("zip")).Absent(property.KeyPath),
	).
		WithDescription("Aggregate a batch of files into a zip archive").
		WithCardinality(converter.Many, converter.One).
		WithCost("speed", 0.3)

	return &aggregator{decl: decl, to: "zip", write: func(items []converter.Item) ([]byte, error) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for i := range items {
			w, err := zw.Create(memberName(items[i], i))
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(items[i].Data); err != nil {
				return nil, err
			}
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}}
}
