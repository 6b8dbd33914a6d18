package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// stopStep is one component to stop, with its own deadline.
type stopStep struct {
	name    string
	timeout time.Duration
	stop    func(context.Context) error
}

// stopInOrder runs steps one after another, each under its own timeout.
func stopInOrder(logger logrus.FieldLogger, steps ...stopStep) {
	for _, s := range steps {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.stop(ctx); err != nil {
			logger.WithError(err).WithField("component", s.name).Warn("shutdown incomplete")
		}
		cancel()
	}
}
