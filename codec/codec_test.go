package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/linkage/model"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())
		})
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsInterchangeable(t *testing.T) {
	edge := model.NewEdge("rec-2", "rec-1", 0.92)

	// go-json output must decode under encoding/json and vice versa.
	fast, err := GoJSON{}.Marshal(edge)
	require.NoError(t, err)

	var viaStd model.Edge
	require.NoError(t, JSON{}.Unmarshal(fast, &viaStd))
	assert.Equal(t, edge, viaStd)

	std := MustMarshal(JSON{}, edge)
	var viaFast model.Edge
	require.NoError(t, GoJSON{}.Unmarshal(std, &viaFast))
	assert.Equal(t, edge, viaFast)
}
