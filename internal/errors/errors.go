package errors

import "errors"

var (
	ErrConfigPathRequired   = errors.New("config path is required")
	ErrRepositoryGuardEmpty = errors.New("repository guard must be configured")
	ErrRunNotFound          = errors.New("run record not found")
	ErrDeployBinaryRequired = errors.New("deploy action binary is required")
)
