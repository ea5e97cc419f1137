package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the service.
var (
	ErrSpaceIDRequired = errors.New("space id required")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobFinished     = errors.New("job already finished")
	ErrStopped         = errors.New("service stopped")
)

// UpstreamReadError reports that the primary read of a space failed. It is
// the only failure that aborts a scan.
type UpstreamReadError struct {
	SpaceID string
	Err     error
}

func (e *UpstreamReadError) Error() string {
	return fmt.Sprintf("read space %s: %v", e.SpaceID, e.Err)
}

func (e *UpstreamReadError) Unwrap() error { return e.Err }
