package eventstream

import "errors"

// ErrNilBriefEvent indicates a nil brief event payload was provided to a publisher.
var ErrNilBriefEvent = errors.New("nil brief event")
