package cost

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cambium-dev/cambium/pkg/property"
)

func costs(pairs map[string]float64) *property.Properties {
	p := property.New()
	for k, v := range pairs {
		p.Set(k, property.Float(v))
	}
	return p
}

func TestCompileAndEvaluate(t *testing.T) {
	expr, err := Compile("quality_loss * 2.0 + size")
	require.NoError(t, err)
	require.Equal(t, "quality_loss * 2.0 + size", expr.Source())

	fn := expr.CostFunc()
	got := fn(costs(map[string]float64{"quality_loss": 0.25, "size": 0.5}))
	require.InDelta(t, 1.0, got, 1e-9)
}

func TestUndeclaredKeysEvaluateAsZero(t *testing.T) {
	expr, err := Compile("quality_loss + speed")
	require.NoError(t, err)

	// the converter only declares quality_loss; speed defaults to 0
	got := expr.CostFunc()(costs(map[string]float64{"quality_loss": 0.3}))
	require.InDelta(t, 0.3, got, 1e-9)

	// nil costs bag scores the expression over all-zero inputs
	require.InDelta(t, 0.0, expr.CostFunc()(nil), 1e-9)
}

func TestExtraKeys(t *testing.T) {
	expr, err := Compile("compression * 10.0", "compression")
	require.NoError(t, err)

	got := expr.CostFunc()(costs(map[string]float64{"compression": 0.5}))
	require.InDelta(t, 5.0, got, 1e-9)
}

func TestCompileErrors(t *testing.T) {
	var testcases = map[string]string{
		`syntax_error`:       "quality_loss +",
		`unknown_variable`:   "bitrate * 2.0",
		`non_numeric_result`: `quality_loss > 0.5`,
	}

	for name, src := range testcases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(src)
			var compErr *CompilationError
			require.ErrorAs(t, err, &compErr)
			require.Equal(t, src, compErr.Expression)
		})
	}
}

func TestIntegerCostValuesWiden(t *testing.T) {
	expr, err := Compile("size")
	require.NoError(t, err)

	p := property.New().With("size", property.Integer(3))
	require.InDelta(t, 3.0, expr.CostFunc()(p), 1e-9)
}
