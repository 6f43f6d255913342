package mdp

import "github.com/pkg/errors"

// Domain consistency errors. They mean a collaborator is malformed and abort
// the solve that hit them.
var (
	ErrProbabilitySum          = errors.New("transition probabilities do not sum to 1")
	ErrNoApplicableAction      = errors.New("no applicable action in non-terminal state")
	ErrInconsistentTransitions = errors.New("learned transition counts and probabilities are out of step")
	ErrMissingPolicyEntry      = errors.New("policy has no action for state")
	ErrInvalidProbability      = errors.New("probability outside [0, 1]")
)

// Recoverable errors.
var (
	ErrImmutableTransition = errors.New("transition model cannot be modified")
	ErrDuplicateReward     = errors.New("reward already set for state")
	ErrNotInitialized      = errors.New("controller used before initialization")
	ErrNotConverged        = errors.New("sweep limit reached before convergence")
)

// IsDomainError reports whether err stems from a malformed domain.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrProbabilitySum,
		ErrNoApplicableAction,
		ErrInconsistentTransitions,
		ErrMissingPolicyEntry,
		ErrInvalidProbability,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
