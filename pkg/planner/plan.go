package planner

import (
	"strings"

	"github.com/cambium-dev/cambium/pkg/converter"
	"github.com/cambium-dev/cambium/pkg/property"
)

// PlanStep is one converter application inside a plan. Plans hold converter
// ids, not converter references; the executor resolves ids against the
// registry on demand, which keeps plans serializable and stops them outliving
// the registry.
type PlanStep struct {
	ConverterID string

	// InputProps is the representative bag the step's input is expected to
	// satisfy; OutputProps is the bag after applying the converter's
	// produces-pattern. The executor's matching guard checks runtime
	// properties against the step's requires before invoking.
	InputProps  *property.Properties
	OutputProps *property.Properties

	// Cardinality of the data entering and leaving the step, in context
	// (element-wise steps under a batch stay many/many).
	InputCard  converter.Cardinality
	OutputCard converter.Cardinality
}

// Plan is an ordered sequence of steps plus the residual properties the
// output bag will carry. The sequence is empty when the source already
// matches the target. Plans are immutable once returned.
type Plan struct {
	Steps []PlanStep

	// FinalProps is the apply-chain result after the last step.
	FinalProps *property.Properties

	// TotalCost is the summed edge score under the scoring function the
	// plan was produced with.
	TotalCost float64
}

// Len reports the number of steps.
func (p *Plan) Len() int { return len(p.Steps) }

// ConverterIDs returns the step ids in order.
func (p *Plan) ConverterIDs() []string {
	ids := make([]string, len(p.Steps))
	for i := range p.Steps {
		ids[i] = p.Steps[i].ConverterID
	}
	return ids
}

// String renders the plan's converter ids as "a.x-to-y -> b.y-to-z".
func (p *Plan) String() string {
	var sb strings.Builder
	for i := range p.Steps {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(p.Steps[i].ConverterID)
	}
	return sb.String()
}
