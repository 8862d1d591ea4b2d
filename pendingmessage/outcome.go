package pendingmessage

import "github.com/crosslink-relay/relayer/chaintypes"

// OutcomeKind tags the result of a single prepare/submit/confirm call.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotReady
	OutcomeDrop
	OutcomeReprepare
	OutcomeConfirm
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "Success"
	case OutcomeNotReady:
		return "NotReady"
	case OutcomeDrop:
		return "Drop"
	case OutcomeReprepare:
		return "Reprepare"
	case OutcomeConfirm:
		return "Confirm"
	default:
		return "Unknown"
	}
}

// Outcome is returned by Prepare, Submit, and Confirm.
type Outcome struct {
	Kind          OutcomeKind
	RetryReason   chaintypes.ReprepareReason // set when Kind == OutcomeReprepare
	DropReason    chaintypes.DropReason      // set when Kind == OutcomeDrop
	ConfirmReason chaintypes.ConfirmReason   // set when Kind == OutcomeConfirm
}

func success() Outcome   { return Outcome{Kind: OutcomeSuccess} }
func notReady() Outcome  { return Outcome{Kind: OutcomeNotReady} }
func drop(r chaintypes.DropReason) Outcome {
	return Outcome{Kind: OutcomeDrop, DropReason: r}
}
func reprepare(r chaintypes.ReprepareReason) Outcome {
	return Outcome{Kind: OutcomeReprepare, RetryReason: r}
}
func confirmOutcome(r chaintypes.ConfirmReason) Outcome {
	return Outcome{Kind: OutcomeConfirm, ConfirmReason: r}
}
