package selection_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swarmpush/swarmpush/internal/selection"
)

func TestStore_Toggle(t *testing.T) {
	s := selection.New()

	assert.True(t, s.Toggle("a"))
	assert.True(t, s.Contains("a"))
	assert.Equal(t, 1, s.Len())

	assert.False(t, s.Toggle("a"))
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ToggleParity(t *testing.T) {
	tests := []struct {
		name    string
		toggles []string
		want    []string
	}{
		{"empty", nil, []string{}},
		{"odd count selects", []string{"a", "a", "a"}, []string{"a"}},
		{"even count deselects", []string{"a", "b", "a"}, []string{"b"}},
		{"interleaved", []string{"c", "a", "b", "c", "b", "b"}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := selection.New()
			for _, id := range tt.toggles {
				s.Toggle(id)
			}
			assert.Equal(t, tt.want, s.Snapshot())
		})
	}
}

func TestStore_ConcurrentTogglesNotLost(t *testing.T) {
	s := selection.New()
	const ids = 20

	var wg sync.WaitGroup
	for i := 0; i < ids; i++ {
		id := fmt.Sprintf("ExponentPushToken[%02d]", i)
		// Three toggles per id: it must end up selected.
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Toggle(id)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, ids, s.Len())
}

func TestStore_ClearAndRetain(t *testing.T) {
	s := selection.New()
	s.Toggle("a")
	s.Toggle("b")
	s.Toggle("c")

	assert.Equal(t, 2, s.Retain([]string{"b", "z"}))
	assert.Equal(t, []string{"b"}, s.Snapshot())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Snapshot())
}

func TestStore_ZeroValue(t *testing.T) {
	var s selection.Store

	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 0, s.Retain(nil))
	assert.True(t, s.Toggle("a"))
	assert.Equal(t, []string{"a"}, s.Snapshot())
	assert.False(t, s.Toggle("a"))
	assert.Equal(t, 0, s.Len())
}
