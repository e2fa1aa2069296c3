package reducer

import "github.com/kittclouds/aide/internal/kernel"

// finish runs constraint evaluation against next and turns any strict
// violation into a rejection of the whole event (returning orig unchanged);
// non-strict violations become warnings attached to the applied result.
func finish(orig, next kernel.Snapshot, priorWarnings ...kernel.Warning) kernel.ReduceResult {
	violations := evaluateConstraints(next)
	warnings := append([]kernel.Warning(nil), priorWarnings...)
	for _, v := range violations {
		if v.constraint.Strict {
			return kernel.Rejected(orig, kernel.ErrStrictConstraintViolated, v.message)
		}
		warnings = append(warnings, kernel.Warning{
			Code:    kernel.WarnConstraintViolated,
			Message: v.message,
		})
	}
	return kernel.Applied(next, warnings...)
}
