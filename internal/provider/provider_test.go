// ABOUTME: Tests for the provider registry and factory
// ABOUTME: Covers lookup of built-in vendors and registration of custom ones

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/explainit/internal/settings"
)

func TestNames_IncludesBuiltins(t *testing.T) {
	names := Names()
	assert.Contains(t, names, settings.ProviderOpenAI)
	assert.Contains(t, names, settings.ProviderAnthropic)
	assert.Contains(t, names, settings.ProviderGoogle)
}

func TestForConfig(t *testing.T) {
	for _, kind := range settings.Providers {
		p, err := ForConfig(settings.AIConfig{Provider: kind})
		require.NoError(t, err)
		assert.Equal(t, kind, p.Name())
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("mistral")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

type echoProvider struct{}

func (echoProvider) Name() settings.Provider { return "echo" }

func (echoProvider) Call(_ context.Context, _, user string, _ settings.AIConfig) (string, error) {
	return user, nil
}

func TestRegister_Custom(t *testing.T) {
	Register("echo", func(...Option) Provider { return echoProvider{} })

	p, err := New("echo")
	require.NoError(t, err)

	answer, err := p.Call(context.Background(), "", "hi", settings.AIConfig{})
	require.NoError(t, err)
	assert.Equal(t, "hi", answer)
	assert.Contains(t, Names(), settings.Provider("echo"))
}
