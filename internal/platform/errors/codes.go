// Package errors provides structured error handling for the expedition engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Turn errors
	CodeNotYourTurn Code = "NOT_YOUR_TURN"

	// Expedition errors
	CodeExpeditionNotFound     Code = "EXPEDITION_NOT_FOUND"
	CodeExpeditionCompleted    Code = "EXPEDITION_COMPLETED"
	CodeCharacterNotOwned      Code = "CHARACTER_NOT_OWNED"
	CodeInvalidLocation        Code = "INVALID_LOCATION"
	CodeInsufficientResources  Code = "INSUFFICIENT_RESOURCES"
	CodeInvariantViolation     Code = "INVARIANT_VIOLATION"
	CodeRaidCooldownActive     Code = "RAID_COOLDOWN_ACTIVE"
	CodeRaidActive             Code = "RAID_ACTIVE"
	CodeNoPendingChoice        Code = "NO_PENDING_CHOICE"
	CodePendingChoiceActive    Code = "PENDING_CHOICE_ACTIVE"
	CodePendingChoiceMismatch  Code = "PENDING_CHOICE_MISMATCH"
	CodeItemNotCarried         Code = "ITEM_NOT_CARRIED"
	CodeExpeditionEmptyVillage Code = "EXPEDITION_EMPTY_VILLAGE"
	CodeExpeditionEmptyRoster  Code = "EXPEDITION_EMPTY_ROSTER"

	// Grotto errors
	CodeGrottoNotFound     Code = "GROTTO_NOT_FOUND"
	CodeGrottoSealed       Code = "GROTTO_SEALED"
	CodeGrottoAlreadyHere  Code = "GROTTO_ALREADY_HERE"
	CodeGrottoTrialPending Code = "GROTTO_TRIAL_PENDING"
	CodeGrottoWrongTrial   Code = "GROTTO_WRONG_TRIAL"
	CodeMazeInvalidAction  Code = "MAZE_INVALID_ACTION"

	// Collaborator errors
	CodeExternalCollaboratorFailure Code = "EXTERNAL_COLLABORATOR_FAILURE"

	// Storage errors
	CodeNotFound               Code = "NOT_FOUND"
	CodeActiveExpeditionExists Code = "ACTIVE_EXPEDITION_EXISTS"

	// Dice/mechanics errors
	CodeDiceMissing     Code = "DICE_MISSING"
	CodeDiceInvalidSpec Code = "DICE_INVALID_SPEC"

	// Tuning errors
	CodeTuningInvalidWeights Code = "TUNING_INVALID_WEIGHTS"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidLocation,
		CodeDiceMissing,
		CodeDiceInvalidSpec,
		CodeMazeInvalidAction,
		CodeTuningInvalidWeights,
		CodeExpeditionEmptyVillage,
		CodeExpeditionEmptyRoster:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeNotYourTurn,
		CodeExpeditionCompleted,
		CodeInsufficientResources,
		CodeInvariantViolation,
		CodeRaidCooldownActive,
		CodeRaidActive,
		CodeNoPendingChoice,
		CodePendingChoiceActive,
		CodePendingChoiceMismatch,
		CodeItemNotCarried,
		CodeGrottoSealed,
		CodeGrottoAlreadyHere,
		CodeGrottoTrialPending,
		CodeGrottoWrongTrial:
		return codes.FailedPrecondition

	// NotFound - missing records
	case CodeExpeditionNotFound,
		CodeGrottoNotFound,
		CodeNotFound:
		return codes.NotFound

	// PermissionDenied - acting on someone else's character
	case CodeCharacterNotOwned:
		return codes.PermissionDenied

	// AlreadyExists - uniqueness conflicts
	case CodeActiveExpeditionExists:
		return codes.AlreadyExists

	// Unavailable - collaborator write failures
	case CodeExternalCollaboratorFailure:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
