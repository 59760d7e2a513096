package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettingsValidate(t *testing.T) {
	settings := DefaultSettings()
	assert.NoError(t, settings.validate())
}

func TestSettingsZeroTTL(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = 0
	assert.Error(t, settings.validate())
}

func TestSettingsNegativeTTL(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = -1
	assert.Error(t, settings.validate())
}

func TestSettingsTTLTooLarge(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = 256
	assert.Error(t, settings.validate())
}

func TestSettingsMinTTL(t *testing.T) {
	settings := DefaultSettings()
	settings.TTL = 1
	assert.NoError(t, settings.validate())
}

func TestSettingsZeroTimeout(t *testing.T) {
	settings := DefaultSettings()
	settings.Timeout = 0
	assert.Error(t, settings.validate())
}

func TestSettingsNegativeTimeout(t *testing.T) {
	settings := DefaultSettings()
	settings.Timeout = -time.Second
	assert.Error(t, settings.validate())
}

func TestSettingsSmallTimeout(t *testing.T) {
	settings := DefaultSettings()
	settings.Timeout = time.Millisecond
	assert.NoError(t, settings.validate())
}

func TestSettingsZeroPoolSize(t *testing.T) {
	settings := DefaultSettings()
	settings.PoolSize = 0
	assert.Error(t, settings.validate())
}

func TestSettingsSlotCapacityBelowMinimum(t *testing.T) {
	settings := DefaultSettings()
	settings.SlotCapacity = MinSlotCapacity() - 1
	assert.Error(t, settings.validate())
}

func TestSettingsSlotCapacityAtMinimum(t *testing.T) {
	settings := DefaultSettings()
	settings.SlotCapacity = MinSlotCapacity()
	assert.NoError(t, settings.validate())
}
