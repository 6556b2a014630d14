package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sidecar struct {
	Space string `json:"space"`
	EF    int    `json:"ef"`
	M     int    `json:"M"`
}

func TestCodecsAgree(t *testing.T) {
	in := sidecar{Space: "cosine", EF: 128, M: 32}

	for _, name := range []string{"json", "go-json"} {
		t.Run(name, func(t *testing.T) {
			c, ok := ByName(name)
			require.True(t, ok)
			assert.Equal(t, name, c.Name())

			b, err := c.Marshal(in)
			require.NoError(t, err)
			assert.JSONEq(t, `{"space":"cosine","ef":128,"M":32}`, string(b))

			var out sidecar
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}

	_, ok := ByName("gob")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	c, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default, c)

	c, err = Parse("JSON")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = Parse("gob")
	assert.ErrorContains(t, err, "gob")
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var out sidecar
	assert.Error(t, Default.Unmarshal([]byte("{not json"), &out))
}
