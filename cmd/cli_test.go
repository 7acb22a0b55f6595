package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	interrors "github.com/cambium-dev/cambium/internal/errors"
	"github.com/cambium-dev/cambium/pkg/budget"
	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/executor"
	"github.com/cambium-dev/cambium/pkg/pattern"
	"github.com/cambium-dev/cambium/pkg/planner"
	"github.com/cambium-dev/cambium/pkg/property"
)

func TestExitCode(t *testing.T) {
	var testcases = map[string]struct {
		err      error
		expected int
	}{
		`nil_is_ok`: {nil, ExitOK},
		`no_path`: {
			&planner.ErrNoPath{Source: property.NewFormat("png"), Target: pattern.Format("yaml")},
			ExitNoPath,
		},
		`budget_exceeded_wrapped`: {
			&executor.AbortedError{Cause: &budget.ExceededError{Requested: 2, Available: 1}},
			ExitBudgetExceeded,
		},
		`converter_error_wrapped`: {
			&executor.FailedError{Step: 0, Cause: &converter.Error{ID: "serde.json-to-yaml", Cause: errors.New("boom")}},
			ExitConverterError,
		},
		`converter_not_found_layered`: {
			interrors.With(
				&executor.FailedError{Step: 0, Cause: &executor.NotFoundError{ID: "missing"}},
				executor.ErrConversion,
			),
			ExitConverterError,
		},
		`generic_failure`: {errors.New("anything else"), ExitFailure},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, ExitCode(tc.err))
		})
	}
}

func TestListCommand(t *testing.T) {
	cmd := NewListCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "Available converters")
	require.Contains(t, out.String(), "serde.json-to-yaml")
	require.Contains(t, out.String(), "archive.zip-to-files")
}

func TestPlanCommand(t *testing.T) {
	cmd := NewPlanCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--from", "json", "--to", "yaml"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "serde.json-to-yaml")
	require.Contains(t, out.String(), "1 steps")
}

func TestPlanCommandNoRoute(t *testing.T) {
	cmd := NewPlanCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--from", "png", "--to", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Equal(t, ExitNoPath, ExitCode(err))
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "test.json")
	output := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(input, []byte(`{"name":"test","value":42}`), 0o644))

	cmd := NewConvertCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input, "-o", output})

	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Contains(t, string(content), "name: test")
	require.Contains(t, string(content), "value: 42")
}

func TestConvertCommandBudgetExceeded(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "test.json")
	output := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(input, []byte(`{"a":1}`), 0o644))

	cmd := NewConvertCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{input, "-o", output, "--memory-limit", "1"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Equal(t, ExitBudgetExceeded, ExitCode(err))
}
