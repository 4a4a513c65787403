package activities

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/Kocoro-lab/interplay/internal/budget"
	"github.com/Kocoro-lab/interplay/internal/dataset"
	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/llm"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

// Application error types surfaced to the workflow.
const (
	ErrTypeDataUnavailable     = "DataUnavailable"
	ErrTypeBudgetExceeded      = "BudgetExceeded"
	ErrTypeModelCall           = "ModelCallFailed"
	ErrTypeResponseMalformed   = "ResponseMalformed"
	ErrTypeResponseInvalid     = "ResponseInvalid"
	ErrTypeUnknownBusinessType = "UnknownBusinessType"
	ErrTypeTerminalStatus      = "TerminalStatus"
)

// classify maps pipeline errors onto Temporal application errors. Data
// fetches stay retryable so the activity retry policy decides; every other
// known failure is fatal for the run.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var verr *llm.ValidationError
	switch {
	case errors.Is(err, dataset.ErrDataUnavailable):
		return temporal.NewApplicationError(err.Error(), ErrTypeDataUnavailable)
	case errors.Is(err, budget.ErrBudgetExceeded):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeBudgetExceeded, nil)
	case errors.Is(err, llm.ErrModelCall):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeModelCall, nil)
	case errors.Is(err, llm.ErrResponseMalformed):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeResponseMalformed, nil)
	case errors.As(err, &verr):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeResponseInvalid, nil, verr.Issues)
	case errors.Is(err, skills.ErrUnknownBusinessType):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnknownBusinessType, nil)
	case errors.Is(err, db.ErrTerminalStatus):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeTerminalStatus, nil)
	}
	return err
}
