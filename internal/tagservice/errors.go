package tagservice

import "errors"

var errTimeout = errors.New("tagservice: request exceeded per-item deadline")
