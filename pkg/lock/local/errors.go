package local

import "github.com/pkg/errors"

var errAlreadyAcquired = errors.New("lock already acquired")
