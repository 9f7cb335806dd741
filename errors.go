package caseflow

import "github.com/luno/jettison/errors"

var (
	ErrInstanceNotFound = errors.New("workflow instance not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidGraph     = errors.New("invalid workflow graph")
)
