package app

import (
	"fmt"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

const (
	// DispatchSubjectPrefix is the NATS subject prefix for dispatch jobs; one
	// subject per channel so workers can be scaled per medium.
	DispatchSubjectPrefix = "notify.jobs.dispatch."
	// DispatchQueueGroup is the queue group dispatch workers join.
	DispatchQueueGroup = "dispatch_workers"
	// EventSubjectPrefix is the NATS subject prefix for lifecycle events.
	EventSubjectPrefix = "notify.events."
)

// QueueSubjects builds the channel→subject lookup table.
func QueueSubjects() map[domain.Channel]string {
	subjects := make(map[domain.Channel]string, len(domain.AllChannels()))
	for _, ch := range domain.AllChannels() {
		subjects[ch] = DispatchSubjectPrefix + string(ch)
	}
	return subjects
}

// ValidateQueueTopology fails fast when the lookup table is missing a declared
// channel, instead of erroring at dispatch time.
func ValidateQueueTopology(subjects map[domain.Channel]string) error {
	for _, ch := range domain.AllChannels() {
		if subjects[ch] == "" {
			return fmt.Errorf("queue topology is missing a subject for channel '%s'", ch)
		}
	}
	return nil
}
