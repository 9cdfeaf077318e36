package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Code identifies a failure class with a stable numeric value.
// Values are part of the public contract and must not be renumbered.
type Code int

const (
	InvalidModel Code = iota + 1
	InvalidConfig
	InvalidSetting
	RequiredSetting
	InvalidItem
	InvalidDistinctKey
	InvalidFilter
	InvalidFilterType
	InvalidIndex
	InvalidIncrementData
	ModelEmptyUniqueIndexes
	EmptyUniqueIndexes
	MongoDbInternalError
)

var codeNames = map[Code]string{
	InvalidModel:            "INVALID_MODEL",
	InvalidConfig:           "INVALID_CONFIG",
	InvalidSetting:          "INVALID_SETTING",
	RequiredSetting:         "REQUIRED_SETTING",
	InvalidItem:             "INVALID_ITEM",
	InvalidDistinctKey:      "INVALID_DISTINCT_KEY",
	InvalidFilter:           "INVALID_FILTER",
	InvalidFilterType:       "INVALID_FILTER_TYPE",
	InvalidIndex:            "INVALID_INDEX",
	InvalidIncrementData:    "INVALID_INCREMENT_DATA",
	ModelEmptyUniqueIndexes: "MODEL_EMPTY_UNIQUE_INDEXES",
	EmptyUniqueIndexes:      "EMPTY_UNIQUE_INDEXES",
	MongoDbInternalError:    "MONGODB_INTERNAL_ERROR",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(c))
}

// MongoDbError is the error type surfaced by every component in this module.
// It carries a stable numeric code and an optional prior error chain.
type MongoDbError struct {
	Code    Code
	Message string
	Cause   error
}

// New creates an error with the given code and message.
func New(code Code, message string) *MongoDbError {
	return &MongoDbError{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *MongoDbError {
	return &MongoDbError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches a prior error and returns the receiver for chaining.
func (e *MongoDbError) WithCause(cause error) *MongoDbError {
	e.Cause = cause
	return e
}

func (e *MongoDbError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d): %s: %s", e.Code, int(e.Code), e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Message)
}

func (e *MongoDbError) Unwrap() error {
	return e.Cause
}

// WrapInternal wraps a driver-originated failure as MONGODB_INTERNAL_ERROR
// with the cause retained. Caller cancellation is passed through unchanged so
// it stays distinguishable from database failures.
func WrapInternal(err error, message string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if me, ok := err.(*MongoDbError); ok {
		return me
	}
	return New(MongoDbInternalError, message).WithCause(err)
}

// CodeOf returns the numeric code carried by err, or 0 when err is not a MongoDbError.
func CodeOf(err error) Code {
	if me, ok := err.(*MongoDbError); ok {
		return me.Code
	}
	return 0
}
