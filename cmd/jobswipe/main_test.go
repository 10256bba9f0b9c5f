package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := buildRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"watch", "replay", "status"}, names)

	watch, _, err := root.Find([]string{"watch"})
	require.NoError(t, err)
	flag := watch.Flags().Lookup("room")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}
