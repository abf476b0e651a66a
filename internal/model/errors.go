package model

import "errors"

var (
	errRowIDRequired = errors.New("rowId is required")
	errHostRequired  = errors.New("ip and user are required")
	errJumpIncomplete = errors.New("jump.ip and jump.user are required when jump.enabled is true")
)
