package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusSpec(t *testing.T) {
	countdown := Status{TimerType: TimerTypeCountdown, TargetTime: 600}
	assert.Equal(t, Countdown{TargetTime: 90}, countdown.Spec(90))
	assert.Equal(t, Countdown{TargetTime: 600}, countdown.Spec(0))

	countup := Status{TimerType: TimerTypeCountup}
	assert.Equal(t, Countup{}, countup.Spec(90))
}
