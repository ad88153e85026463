package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstances(t *testing.T) {
	out := parseInstances("inst1:centro:https://api.example.com/1:tok1, inst2:zona-sul:https://api.example.com/2:tok2")
	require.Len(t, out, 2)
	assert.Equal(t, Instance{ID: "inst1", Unit: "centro", APIURL: "https://api.example.com/1", Token: "tok1"}, out[0])
	assert.Equal(t, "zona-sul", out[1].Unit)
}

func TestParseInstancesURLWithPort(t *testing.T) {
	out := parseInstances("inst1:centro:https://api.example.com:8443/v1:tok1")
	require.Len(t, out, 1)
	assert.Equal(t, "https://api.example.com:8443/v1", out[0].APIURL)
	assert.Equal(t, "tok1", out[0].Token)
}

func TestParseInstancesSkipsMalformedEntries(t *testing.T) {
	out := parseInstances("inst1:centro:https://api.example.com/1:tok1,broken-entry")
	require.Len(t, out, 1)
	assert.Equal(t, "inst1", out[0].ID)
}

func TestParseInstancesEmpty(t *testing.T) {
	assert.Nil(t, parseInstances(""))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.True(t, cfg.InstanceBotDefault)
	assert.Equal(t, 1, cfg.FollowUp1MinHours)
	assert.Equal(t, 72, cfg.FollowUp1MaxHours)
	assert.Equal(t, 24, cfg.FollowUp2MinHours)
	assert.Equal(t, 96, cfg.FollowUp2MaxHours)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WHATSAPP_INSTANCES", "inst1:centro:https://api.example.com/1:tok1")
	t.Setenv("BOT_DEFAULT_ENABLED", "false")
	t.Setenv("SCHEDULER_INTERVAL", "30s")
	t.Setenv("FOLLOWUP1_MAX_HOURS", "48")

	cfg := LoadConfig()
	assert.Equal(t, "9000", cfg.Port)
	require.Len(t, cfg.Instances, 1)
	assert.Equal(t, "centro", cfg.Instances[0].Unit)
	assert.False(t, cfg.InstanceBotDefault)
	assert.Equal(t, 30*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, 48, cfg.FollowUp1MaxHours)
}

func TestInstanceByID(t *testing.T) {
	cfg := &Config{Instances: []Instance{{ID: "inst1", Unit: "centro"}}}
	require.NotNil(t, cfg.InstanceByID("inst1"))
	assert.Equal(t, "centro", cfg.InstanceByID("inst1").Unit)
	assert.Nil(t, cfg.InstanceByID("missing"))
}
