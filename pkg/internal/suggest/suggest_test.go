package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRank(t *testing.T) {
	candidates := []string{"ExamplePlugin", "Other", "ExamplePlug"}
	assert.Equal(t, []string{"ExamplePlugin", "ExamplePlug"}, Rank("exampleplugin", candidates))
	assert.Empty(t, Rank("zzz", candidates))
	assert.Empty(t, Rank("anything", nil))
}

func TestClosest(t *testing.T) {
	s, ok := Closest("ExamplePlugn", []string{"Other", "ExamplePlugin"})
	assert.True(t, ok)
	assert.Equal(t, "ExamplePlugin", s)

	_, ok = Closest("xyz", []string{"ExamplePlugin"})
	assert.False(t, ok)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 1.0, Score("Example", "example"))
	assert.Less(t, Score("abc", "xyz"), MinScore)
}
