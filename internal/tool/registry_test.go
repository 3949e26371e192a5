package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryOrder(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{AddSteps, GetSteps, GetUserProfile}, r.Names())

	d, ok := r.Get(AddSteps)
	require.True(t, ok)
	assert.Equal(t, []string{"date", "count"}, d.InputSchema["required"])
}

func TestRegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "x"}))
	assert.Error(t, r.Register(Descriptor{Name: "x"}))
	assert.Error(t, r.Register(Descriptor{}))
	assert.Len(t, r.List(), 1)
}

func TestResources(t *testing.T) {
	uris := []string{}
	for _, res := range Resources() {
		uris = append(uris, res.URI)
	}
	assert.Equal(t, []string{ProfileURI, RecentStepsURI}, uris)
}
