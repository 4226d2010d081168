package services

import (
	"context"

	"livetranslate/internal/core/domain"
	"livetranslate/internal/core/ports"
)

type noopMetrics struct{}

func (noopMetrics) RecordSessionCreated(domain.Language)                          {}
func (noopMetrics) RecordSessionEnded(float64)                                    {}
func (noopMetrics) RecordParticipantJoined(domain.Language)                       {}
func (noopMetrics) RecordParticipantLeft()                                        {}
func (noopMetrics) RecordRoleTransition(domain.UserRole, domain.UserRole, string) {}
func (noopMetrics) RecordRoleResetFailure()                                       {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.SessionEvent) error { return nil }

func metricsOrNoop(m ports.MetricsRecorder) ports.MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func publisherOrNoop(p ports.EventPublisher) ports.EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
