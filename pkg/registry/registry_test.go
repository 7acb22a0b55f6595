package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
)

type declConverter struct {
	decl *converter.Decl
}

func (c *declConverter) Decl() *converter.Decl { return c.decl }

func (c *declConverter) Convert(_ context.Context, data []byte, props *property.Properties) (*converter.Output, error) {
	return converter.Single(data, props.Clone()), nil
}

func conv(id, from, to string) converter.Converter {
	return &declConverter{decl: converter.NewDecl(id, pattern.Format(from), pattern.Format(to))}
}

func TestRegisterAndGet(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(conv("serde.json-to-yaml", "json", "yaml")))

	c, found := reg.Get("serde.json-to-yaml")
	require.True(t, found)
	require.Equal(t, "serde.json-to-yaml", c.Decl().ID)

	_, found = reg.Get("missing.id")
	require.False(t, found)
}

func TestRegisterDuplicateID(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(conv("serde.json-to-yaml", "json", "yaml")))

	err := reg.Register(conv("serde.json-to-yaml", "json", "yaml"))
	var dup *ErrDuplicateID
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "serde.json-to-yaml", dup.ID)
	require.Equal(t, 1, reg.Len())
}

func TestRegisterRejectsInvalidDecl(t *testing.T) {
	reg := New()
	bad := &declConverter{decl: converter.NewDecl(
		"serde.a-to-b",
		pattern.New().Regex("path", `[unclosed`),
		pattern.Format("b"),
	)}
	require.Error(t, reg.Register(bad))
	require.Equal(t, 0, reg.Len())
}

func TestAllIsIDOrdered(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(conv("image.png-to-webp", "png", "webp")))
	require.NoError(t, reg.Register(conv("archive.zip-to-files", "zip", "raw")))
	require.NoError(t, reg.Register(conv("serde.json-to-yaml", "json", "yaml")))

	var ids []string
	for _, c := range reg.All() {
		ids = append(ids, c.Decl().ID)
	}
	require.Equal(t, []string{"archive.zip-to-files", "image.png-to-webp", "serde.json-to-yaml"}, ids)
}

func TestCandidatesFrom(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(conv("serde.json-to-yaml", "json", "yaml")))
	require.NoError(t, reg.Register(conv("serde.json-to-ndjson", "json", "ndjson")))
	require.NoError(t, reg.Register(conv("serde.yaml-to-json", "yaml", "json")))

	candidates := reg.CandidatesFrom(property.NewFormat("json"))
	var ids []string
	for _, c := range candidates {
		ids = append(ids, c.Decl().ID)
	}
	require.Equal(t, []string{"serde.json-to-ndjson", "serde.json-to-yaml"}, ids)

	require.Empty(t, reg.CandidatesFrom(property.NewFormat("png")))
}
