package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_WrapsSentinel(t *testing.T) {
	err := New(ErrInsufficientChannels).
		Component("localization").
		Category(CategoryLocalization).
		Context("channels", 2).
		Build()

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrInsufficientChannels))
	assert.Equal(t, "localization", err.Component)
	assert.Equal(t, "localization", err.GetCategory())
	assert.Equal(t, 2, err.GetContext()["channels"])
}

func TestBuilder_DefaultCategory(t *testing.T) {
	err := Newf("decode failed: %s", "bad header").Build()
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, "decode failed: bad header", err.Error())
}

func TestHasCategory(t *testing.T) {
	err := New(ErrNonFiniteFeatures).Category(CategoryFeatureExtraction).Build()
	assert.True(t, HasCategory(err, CategoryFeatureExtraction))
	assert.False(t, HasCategory(err, CategoryLocalization))
	assert.False(t, HasCategory(stderrors.New("plain"), CategoryGeneric))
}

func TestGetContext_ReturnsCopy(t *testing.T) {
	err := New(stderrors.New("x")).Context("k", "v").Build()
	ctx := err.GetContext()
	ctx["k"] = "mutated"
	assert.Equal(t, "v", err.GetContext()["k"])
}
