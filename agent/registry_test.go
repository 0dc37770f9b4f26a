package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTool struct {
	name string
}

func (n *namedTool) Name() string                       { return n.name }
func (n *namedTool) Description() string                { return "test tool" }
func (n *namedTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }

func (n *namedTool) Run(context.Context, string) (string, error) {
	return `{"status":"ok"}`, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&namedTool{name: "alpha"}))

	tool, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", tool.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&namedTool{name: "alpha"}))
	err := reg.Register(&namedTool{name: "alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
}

func TestRegistryRejectsAnonymousTools(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.Register(&namedTool{name: ""}))
	require.Error(t, reg.Register(nil))
}

func TestRegistryListSortsByName(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&namedTool{name: "charlie"}, &namedTool{name: "alpha"}, &namedTool{name: "bravo"})

	var names []string
	for _, tool := range reg.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&namedTool{name: "alpha"})
	assert.Panics(t, func() {
		reg.MustRegister(&namedTool{name: "alpha"})
	})
}
