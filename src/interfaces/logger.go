package interfaces

import "github.com/sirupsen/logrus"

type Logger struct {
	*logrus.Logger
}
