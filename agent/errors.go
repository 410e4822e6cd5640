package agent

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/BaSui01/agentrun/types"
)

// ErrorKind names a run failure category.
type ErrorKind string

const (
	KindMaxTurnsExceeded                 ErrorKind = "MaxTurnsExceeded"
	KindModelBehavior                    ErrorKind = "ModelBehaviorError"
	KindInputGuardrailTripwireTriggered  ErrorKind = "InputGuardrailTripwireTriggered"
	KindOutputGuardrailTripwireTriggered ErrorKind = "OutputGuardrailTripwireTriggered"
	KindGuardrailExecution               ErrorKind = "GuardrailExecutionError"
	KindToolCall                         ErrorKind = "ToolCallError"
	KindModelCall                        ErrorKind = "ModelCallError"
	KindCancelled                        ErrorKind = "Cancelled"
	KindUserError                        ErrorKind = "UserError"
)

// RunStateCarrier is implemented by every run error. RunState is nil only
// for setup errors raised before a run started.
type RunStateCarrier interface {
	error
	Kind() ErrorKind
	RunState() *RunState
}

type stateRef struct {
	state *RunState
}

// RunState returns the state at the point of failure.
func (s stateRef) RunState() *RunState { return s.state }

func (s *stateRef) attach(st *RunState) {
	if s.state == nil {
		s.state = st
	}
}

type stateAttacher interface {
	attach(*RunState)
}

// attachState records st on err if err is a run error without a state.
func attachState(err error, st *RunState) error {
	var a stateAttacher
	if errors.As(err, &a) {
		a.attach(st)
	}
	return err
}

// MaxTurnsExceededError reports an exhausted turn budget.
type MaxTurnsExceededError struct {
	stateRef
	MaxTurns int
}

func (e *MaxTurnsExceededError) Error() string {
	return fmt.Sprintf("max turns (%d) exceeded", e.MaxTurns)
}

func (e *MaxTurnsExceededError) Kind() ErrorKind { return KindMaxTurnsExceeded }

// ModelBehaviorError reports output the runner cannot act on: malformed
// structured output, unknown tools or handoffs, invalid arguments.
type ModelBehaviorError struct {
	stateRef
	Message string
	Cause   error
}

func (e *ModelBehaviorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model behavior error: %s: %v", e.Message, e.Cause)
	}
	return "model behavior error: " + e.Message
}

func (e *ModelBehaviorError) Unwrap() error   { return e.Cause }
func (e *ModelBehaviorError) Kind() ErrorKind { return KindModelBehavior }

// InputGuardrailTripwireError reports an input guardrail tripwire.
type InputGuardrailTripwireError struct {
	stateRef
	Result GuardrailResult
}

func (e *InputGuardrailTripwireError) Error() string {
	return fmt.Sprintf("input guardrail %q triggered tripwire", e.Result.Guardrail)
}

func (e *InputGuardrailTripwireError) Kind() ErrorKind { return KindInputGuardrailTripwireTriggered }

// OutputGuardrailTripwireError reports an output guardrail tripwire.
type OutputGuardrailTripwireError struct {
	stateRef
	Result GuardrailResult
}

func (e *OutputGuardrailTripwireError) Error() string {
	return fmt.Sprintf("output guardrail %q triggered tripwire", e.Result.Guardrail)
}

func (e *OutputGuardrailTripwireError) Kind() ErrorKind { return KindOutputGuardrailTripwireTriggered }

// GuardrailExecutionError reports a guardrail that failed to run.
type GuardrailExecutionError struct {
	stateRef
	Guardrail string
	Cause     error
}

func (e *GuardrailExecutionError) Error() string {
	return fmt.Sprintf("guardrail %q failed: %v", e.Guardrail, e.Cause)
}

func (e *GuardrailExecutionError) Unwrap() error   { return e.Cause }
func (e *GuardrailExecutionError) Kind() ErrorKind { return KindGuardrailExecution }

// ToolCallError reports a failed tool invocation. It is handed to error
// formatters; it only aborts a run for fail-fast tools.
type ToolCallError struct {
	stateRef
	ToolName string
	CallID   string
	Cause    error
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool %s (call %s) failed: %v", e.ToolName, e.CallID, e.Cause)
}

func (e *ToolCallError) Unwrap() error   { return e.Cause }
func (e *ToolCallError) Kind() ErrorKind { return KindToolCall }

// ModelCallError reports a failed provider call.
type ModelCallError struct {
	stateRef
	Model    string
	Provider string
	Cause    error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model %s call failed: %v", e.Model, e.Cause)
}

func (e *ModelCallError) Unwrap() error   { return e.Cause }
func (e *ModelCallError) Kind() ErrorKind { return KindModelCall }

// CancelledError reports a run stopped by its context.
type CancelledError struct {
	stateRef
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled: %v", e.Cause)
}

func (e *CancelledError) Unwrap() error   { return e.Cause }
func (e *CancelledError) Kind() ErrorKind { return KindCancelled }

// UserError reports invalid setup or a failing user callback.
type UserError struct {
	stateRef
	Message string
	Cause   error
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *UserError) Unwrap() error   { return e.Cause }
func (e *UserError) Kind() ErrorKind { return KindUserError }

func userErrorf(format string, args ...any) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// StateOf returns the RunState attached to err, or nil.
func StateOf(err error) *RunState {
	var c RunStateCarrier
	if errors.As(err, &c) {
		return c.RunState()
	}
	return nil
}

// KindOf returns the kind of a run error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var c RunStateCarrier
	if errors.As(err, &c) {
		return c.Kind()
	}
	return ""
}

// ToTypesError maps a run error onto the service error model.
func ToTypesError(err error) *types.Error {
	if err == nil {
		return nil
	}
	if te, ok := types.AsError(err); ok && KindOf(err) == "" {
		return te
	}
	code, status := types.ErrInternalError, http.StatusInternalServerError
	switch KindOf(err) {
	case KindMaxTurnsExceeded:
		code, status = types.ErrMaxTurnsExceeded, http.StatusUnprocessableEntity
	case KindModelBehavior:
		code, status = types.ErrModelBehavior, http.StatusBadGateway
	case KindInputGuardrailTripwireTriggered:
		code, status = types.ErrInputGuardrailTripwire, http.StatusForbidden
	case KindOutputGuardrailTripwireTriggered:
		code, status = types.ErrOutputGuardrailTripwire, http.StatusForbidden
	case KindGuardrailExecution:
		code = types.ErrGuardrailExecution
	case KindToolCall:
		code = types.ErrToolCall
	case KindModelCall:
		code, status = types.ErrModelCall, http.StatusBadGateway
	case KindCancelled:
		code, status = types.ErrCancelled, 499
	case KindUserError:
		code, status = types.ErrUserError, http.StatusBadRequest
	}
	te := types.NewError(code, err.Error()).WithCause(err).WithHTTPStatus(status)
	var mce *ModelCallError
	if errors.As(err, &mce) && mce.Provider != "" {
		te = te.WithProvider(mce.Provider)
	}
	return te
}
