package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnirelay/golang_services/internal/core_notify/domain"
)

func TestQueueSubjects_CoversEveryChannel(t *testing.T) {
	subjects := QueueSubjects()
	assert.NoError(t, ValidateQueueTopology(subjects))
	for _, ch := range domain.AllChannels() {
		assert.Equal(t, DispatchSubjectPrefix+string(ch), subjects[ch])
	}
}

func TestValidateQueueTopology_MissingChannelFails(t *testing.T) {
	subjects := QueueSubjects()
	delete(subjects, domain.ChannelInApp)
	err := ValidateQueueTopology(subjects)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), string(domain.ChannelInApp))
}
