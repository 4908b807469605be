// Package apperr classifies failures of the cashup core so that transports can map them
// to a stable status without inspecting messages.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindIntegrity
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code class of k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a kind to a lower level error, usually coming from the store.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) error {
	return New(KindValidation, msg)
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// RootCause returns the innermost error of the chain.
func RootCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return err
}

// Message is the text shown to the terminal. Classified errors keep their context,
// anything else is reduced to its root cause so driver wrappers do not leak.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) != KindInternal {
		return err.Error()
	}
	return RootCause(err).Error()
}

var (
	ErrCashupNotFound       = New(KindNotFound, "cashup not found")
	ErrTerminalNotFound     = New(KindNotFound, "terminal not found")
	ErrUnknownPaymentMethod = New(KindNotFound, "unknown payment method")
	ErrUnknownReason        = New(KindNotFound, "unknown movement reason")
	ErrMovementNotFound     = New(KindNotFound, "cash movement not found")
	ErrNoMasterCashup       = New(KindNotFound, "master terminal has no open cashup")

	ErrNotMaster = New(KindValidation, "terminal is not a master terminal")

	ErrCashupClosed        = New(KindConflict, "cashup is already processed")
	ErrAlreadyProcessed    = New(KindConflict, "cashup was already marked processed")
	ErrDraftReconciliation = New(KindConflict, "a draft reconciliation exists for a linked financial account")
	ErrAssociationConflict = New(KindConflict, "cashup is already associated with a different master cashup")
	ErrSlaveNotAssociated  = New(KindConflict, "slave cashup is not associated with the master cashup")
	ErrApprovalRequired    = New(KindConflict, "closing with cash differences requires an approval")
	ErrUnresolvedErrors    = New(KindConflict, "terminal has unresolved errors")
	ErrIdempotencyMismatch = New(KindConflict, "request id was already used with a different payload")

	ErrDataIntegrity = New(KindIntegrity, "data integrity violation")

	ErrUnauthorized = New(KindUnauthorized, "unauthorized")
)

// Response - ответ терминалу при любой ошибке.
type Response struct {
	Status  int    `json:"status"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// WriteHTTP пишет err в едином JSON-формате с кодом класса ошибки.
func WriteHTTP(w http.ResponseWriter, err error) {
	responseJSON, _ := json.Marshal(Response{Status: -1, Error: true, Message: Message(err)})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(KindOf(err).HTTPStatus())
	w.Write(responseJSON)
}
