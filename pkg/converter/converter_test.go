package converter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/property"
)

func TestDeclValidate(t *testing.T) {
	var testcases = map[string]struct {
		decl    *Decl
		wantErr bool
	}{
		`valid`: {
			decl: NewDecl("serde.json-to-yaml", pattern.Format("json"), pattern.Format("yaml")).
				WithCost("quality_loss", 0).
				WithCost("speed", 0.5),
		},
		`missing_id`: {
			decl:    NewDecl("", pattern.Format("json"), pattern.Format("yaml")),
			wantErr: true,
		},
		`negative_cost`: {
			decl: NewDecl("serde.json-to-yaml", pattern.Format("json"), pattern.Format("yaml")).
				WithCost("speed", -1),
			wantErr: true,
		},
		`non_numeric_cost`: {
			decl: func() *Decl {
				d := NewDecl("serde.json-to-yaml", pattern.Format("json"), pattern.Format("yaml"))
				d.Costs.Set("speed", property.String("fast"))
				return d
			}(),
			wantErr: true,
		},
		`broken_requires_regex`: {
			decl: NewDecl("serde.json-to-yaml",
				pattern.New().Regex("path", `[unclosed`),
				pattern.Format("yaml")),
			wantErr: true,
		},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			err := tc.decl.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestOutputShapes(t *testing.T) {
	single := Single([]byte("x"), property.NewFormat("json"))
	require.False(t, single.IsMulti())
	require.Len(t, single.Items(), 1)
	require.Equal(t, []byte("x"), single.Item().Data)

	multi := Multi([]Item{
		{Data: []byte("a"), Props: property.NewFormat("raw")},
		{Data: []byte("b"), Props: property.NewFormat("raw")},
	})
	require.True(t, multi.IsMulti())
	require.Len(t, multi.Items(), 2)
	require.Panics(t, func() { multi.Item() })
}

func TestCardinalityString(t *testing.T) {
	require.Equal(t, "one", One.String())
	require.Equal(t, "many", Many.String())
}
