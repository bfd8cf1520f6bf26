package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuberoom/internal/vkerr"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("VK_VALIDATION", "")
	cfg, err := parseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.width)
	assert.Equal(t, 600, cfg.height)
	assert.Equal(t, 2, cfg.framesInFlight)
	assert.True(t, cfg.multisample)
	assert.True(t, cfg.enableValidation)
	assert.Equal(t, "shaders", cfg.shaderDir)
	assert.Empty(t, cfg.modelPath)
	assert.Equal(t, 5*time.Second, cfg.statsInterval)
}

func TestParseConfigFlags(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-model", "room.obj", "-texture", "room.png", "-frames", "3",
		"-msaa=false", "-validation=false", "-width", "1024", "-height", "768", "-stats", "0",
	})
	require.NoError(t, err)
	assert.Equal(t, "room.obj", cfg.modelPath)
	assert.Equal(t, "room.png", cfg.texturePath)
	assert.Equal(t, 3, cfg.framesInFlight)
	assert.False(t, cfg.multisample)
	assert.False(t, cfg.enableValidation)
	assert.Equal(t, 1024, cfg.width)
	assert.Equal(t, 768, cfg.height)
	assert.Zero(t, cfg.statsInterval)
}

func TestParseConfigRejects(t *testing.T) {
	for _, args := range [][]string{
		{"-frames", "0"},
		{"-frames", "5"},
		{"-width", "0"},
		{"-height", "-1"},
		{"-stats", "-1s"},
		{"-no-such-flag"},
	} {
		_, err := parseConfig(args)
		require.Error(t, err, "%v", args)
		assert.Equal(t, vkerr.KindSetup, vkerr.KindOf(err), "%v", args)
	}
}

func TestValidationFromEnvironment(t *testing.T) {
	for env, want := range map[string]bool{"": true, "1": true, "0": false, "false": false, "FALSE": false} {
		t.Setenv("VK_VALIDATION", env)
		assert.Equal(t, want, enableValidationLayers(), "VK_VALIDATION=%q", env)
	}
}
