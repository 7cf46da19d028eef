package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-mro/internal/procurement/ledger"
	"github.com/bitfantasy/nimo-mro/internal/procurement/repository"
)

// Sentinels for errors.Is; the typed errors below unwrap to them.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrOverReceipt       = ledger.ErrOverReceipt
)

// NotFoundError 引用的记录不存在
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError 状态不允许当前操作
type InvalidTransitionError struct {
	Entity   string   `json:"entity"`
	From     string   `json:"from"`
	Action   string   `json:"action"`
	Required []string `json:"required,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("%s: cannot %s from %s", e.Entity, e.Action, e.From)
	if len(e.Required) > 0 {
		msg += " (requires " + strings.Join(e.Required, " or ") + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError 输入校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError 唯一性冲突; callers may retry.
type ConflictError struct {
	Entity string
	Key    string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func invalidTransition(entityName, from, action string, required ...string) *InvalidTransitionError {
	return &InvalidTransitionError{Entity: entityName, From: from, Action: action, Required: required}
}

func validation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// lookupErr turns repository.ErrNotFound into a NotFoundError and passes anything else through.
func lookupErr(entityName, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entityName, ID: id}
	}
	return fmt.Errorf("load %s %s: %w", entityName, id, err)
}

func conflictErr(entityName, key string, err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return &ConflictError{Entity: entityName, Key: key, Err: err}
	}
	return err
}
