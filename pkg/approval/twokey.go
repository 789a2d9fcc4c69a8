package approval

import (
	"fmt"

	"github.com/Unclefole/operatorkit/pkg/contracts"
	"github.com/Unclefole/operatorkit/pkg/sideeffect"
)

// RequiresSecondKey reports whether any side effect in the batch is
// write-classified and therefore needs the second confirmation. Used by
// the UI layer to decide whether to show the confirmation affordance.
func RequiresSecondKey(effects []contracts.SideEffect) bool {
	for _, effect := range effects {
		if sideeffect.IsWrite(effect.Kind) {
			return true
		}
	}
	return false
}

// CheckSecondKey gates a single side effect on the two-key confirmation.
// It applies only to write-classified kinds: a write without
// secondConfirmationGranted is blocked individually, while reads in the
// same batch are unaffected. The second confirmation is a distinct flag
// set by a distinct UI step; it shares no state with the first approval.
func CheckSecondKey(effect contracts.SideEffect, secondConfirmationGranted bool) error {
	if !sideeffect.IsWrite(effect.Kind) {
		return nil
	}
	if !secondConfirmationGranted {
		return &contracts.ValidationError{
			Reason: fmt.Sprintf("write effect %s requires the second confirmation", effect.Kind),
		}
	}
	return nil
}
