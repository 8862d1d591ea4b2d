package chaintypes

// ReprepareReason explains why a pending message operation needs another
// prepare pass instead of proceeding.
type ReprepareReason string

const (
	ReasonErrorSubmitting    ReprepareReason = "error_submitting"
	ReasonRevertedOrReorged  ReprepareReason = "reverted_or_reorged"
	ReasonCouldNotFetch      ReprepareReason = "could_not_fetch_metadata"
	ReasonMetadataRefused    ReprepareReason = "metadata_refused"
	ReasonGasPolicyNotMet    ReprepareReason = "gas_policy_not_met"
	ReasonExceedsMaxGasLimit ReprepareReason = "exceeds_max_gas_limit"
	ReasonEstimateError      ReprepareReason = "error_estimating_gas"
)

// DropReason explains a terminal Drop outcome.
type DropReason string

const (
	DropRecipientNotContract DropReason = "recipient_not_contract"
	DropMaxRetriesExceeded   DropReason = "max_retries_exceeded"
)

// ConfirmReason distinguishes why a message is believed already delivered.
type ConfirmReason string

const (
	ConfirmAlreadySubmitted ConfirmReason = "already_submitted"
	ConfirmSubmittedBySelf  ConfirmReason = "submitted_by_self"
)

// StatusKind tags the PendingOperationStatus variant. Only one of the
// associated fields below is meaningful for a given Kind. uint8, not int:
// PendingOperationStatus is persisted through store.Encode, and rlp
// cannot encode signed integer types.
type StatusKind uint8

const (
	StatusFirstPrepareAttempt StatusKind = iota
	StatusRetry
	StatusReadyToSubmit
	StatusMempool
	StatusIncluded
	StatusFinalized
	StatusDropped
	StatusConfirm
)

func (k StatusKind) String() string {
	switch k {
	case StatusFirstPrepareAttempt:
		return "FirstPrepareAttempt"
	case StatusRetry:
		return "Retry"
	case StatusReadyToSubmit:
		return "ReadyToSubmit"
	case StatusMempool:
		return "Mempool"
	case StatusIncluded:
		return "Included"
	case StatusFinalized:
		return "Finalized"
	case StatusDropped:
		return "Dropped"
	case StatusConfirm:
		return "Confirm"
	default:
		return "Unknown"
	}
}

// PendingOperationStatus is the persisted lifecycle tag for a message id.
type PendingOperationStatus struct {
	Kind          StatusKind
	RetryReason   ReprepareReason // valid when Kind == StatusRetry
	DropReason    DropReason      // valid when Kind == StatusDropped
	ConfirmReason ConfirmReason   // valid when Kind == StatusConfirm
}

func NewFirstPrepareAttempt() PendingOperationStatus {
	return PendingOperationStatus{Kind: StatusFirstPrepareAttempt}
}

func NewRetry(reason ReprepareReason) PendingOperationStatus {
	return PendingOperationStatus{Kind: StatusRetry, RetryReason: reason}
}

func NewDropped(reason DropReason) PendingOperationStatus {
	return PendingOperationStatus{Kind: StatusDropped, DropReason: reason}
}

func NewConfirm(reason ConfirmReason) PendingOperationStatus {
	return PendingOperationStatus{Kind: StatusConfirm, ConfirmReason: reason}
}

// ValidatorsAndThreshold describes the multisig validator set backing an ISM.
type ValidatorsAndThreshold struct {
	Validators [][20]byte
	Threshold  uint8
}

// Validate enforces 1 <= threshold <= len(validators).
func (v ValidatorsAndThreshold) Validate() error {
	if v.Threshold < 1 || int(v.Threshold) > len(v.Validators) {
		return ErrInvalidThreshold
	}
	return nil
}

// SignedUpdate is a validator-signed checkpoint update: previous_root -> new_root.
type SignedUpdate struct {
	PreviousRoot [32]byte
	NewRoot      [32]byte
	Signature    []byte
	Signer       [20]byte
}

// IsDoubleUpdateWith reports whether other is a double-update witness
// against u: same PreviousRoot, same Signer, different NewRoot.
func (u SignedUpdate) IsDoubleUpdateWith(other SignedUpdate) bool {
	return u.PreviousRoot == other.PreviousRoot &&
		u.Signer == other.Signer &&
		u.NewRoot != other.NewRoot
}

var ErrInvalidThreshold = statusError("threshold must satisfy 1 <= threshold <= len(validators)")

type statusError string

func (e statusError) Error() string { return string(e) }
