package listeners

import "errors"

var (
	ErrListenerExist    = errors.New("listener is exist")
	ErrListenerNotExist = errors.New("listener is not exist")
)
