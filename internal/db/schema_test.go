package db

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCreatedTriggerPath(t *testing.T) {
	m := regexp.MustCompile(`NEW\.path ~ '([^']+)'`).FindStringSubmatch(schemaSQL)
	require.Len(t, m, 2, "trigger path pattern")
	pattern := regexp.MustCompile(m[1])

	assert.True(t, pattern.MatchString("events/e1/startTimeStamp"))
	assert.False(t, pattern.MatchString("events/e1/startDateStringUTC"))
	assert.False(t, pattern.MatchString("events/e1/location/name"))
	assert.False(t, pattern.MatchString("users/u1/startTimeStamp"))
}
