// Package approval implements the pure validation gates that stand
// between a draft and any external side effect: the approval gate
// (first key) and the write-specific second confirmation (second key).
//
// Both gates are pure functions. They perform no I/O, hold no state,
// and are deterministic given their inputs; the execution engine calls
// the approval gate a second time immediately before dispatch as defense
// in depth against a caller that skipped it.
package approval

import (
	"fmt"

	"github.com/Unclefole/operatorkit/pkg/contracts"
	"github.com/Unclefole/operatorkit/pkg/sideeffect"
)

// LowConfidenceThreshold is the confidence below which the user must
// explicitly acknowledge that they reviewed a low-confidence draft.
// Fixed constant; not configurable.
const LowConfidenceThreshold = 0.5

// Decision is the gate's verdict. Reason is empty iff CanProceed is true.
type Decision struct {
	CanProceed bool
	Reason     string
}

func blocked(format string, args ...any) Decision {
	return Decision{CanProceed: false, Reason: fmt.Sprintf(format, args...)}
}

var allow = Decision{CanProceed: true}

// CanExecute validates one execution attempt. Rules run in order and the
// first failing rule wins:
//
//  1. a draft must be present
//  2. approvalGranted must be true
//  3. a low-confidence draft needs an explicit acknowledgement
//  4. every permission-gated side effect needs its scope granted in the
//     live permission snapshot taken at validation time
//
// approvalGranted and didConfirmLowConfidence are mandatory positional
// parameters: Go has no argument defaults, so no call site can omit them.
func CanExecute(
	draft *contracts.Draft,
	approvalGranted bool,
	effects []contracts.SideEffect,
	perms contracts.PermissionState,
	didConfirmLowConfidence bool,
) Decision {
	if draft == nil {
		return blocked("no draft to execute")
	}
	if !approvalGranted {
		return blocked("user approval not granted")
	}
	if draft.Confidence < LowConfidenceThreshold && !didConfirmLowConfidence {
		return blocked("draft confidence %.2f is below %.2f and the low-confidence review was not confirmed",
			draft.Confidence, LowConfidenceThreshold)
	}
	for _, effect := range effects {
		class, err := sideeffect.Classify(effect.Kind)
		if err != nil {
			return blocked("%v", err)
		}
		if class.Permission == contracts.ScopeNone {
			continue
		}
		if !perms.Granted(class.Permission) {
			return blocked("permission %q not granted for %s", class.Permission, effect.Kind)
		}
	}
	return allow
}
