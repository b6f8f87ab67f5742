package relevancy

import (
	"sync"
	"testing"

	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_IsRelevant(t *testing.T) {
	f := New("")
	require.Equal(t, DefaultPrefix, f.Prefix())

	tests := []struct {
		cond string
		want bool
	}{
		{"CONFIG_A", true},
		{"!CONFIG_A", true},
		{"X && (Y || CONFIG_B)", true},
		{"MY_CONFIG_A", false},
		{"CONFIGURE", false},
		{"X && Y", false},
		{"true", false},
		{"__CONFIG_X", false},
	}

	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsRelevant(logic.MustParse(tt.cond)))
		})
	}

	assert.False(t, f.IsRelevant(nil))
}

func TestFilter_CustomPrefix(t *testing.T) {
	f := New("FEATURE_")
	assert.True(t, f.IsRelevant(logic.MustParse("FEATURE_X")))
	assert.False(t, f.IsRelevant(logic.MustParse("CONFIG_X")))
}

func TestFilter_ConcurrentUse(t *testing.T) {
	f := New("CONFIG_")
	cond := logic.MustParse("A && (B || CONFIG_C)")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.True(t, f.IsRelevant(cond))
			}
		}()
	}
	wg.Wait()
}

func TestFilter_Project(t *testing.T) {
	file := model.NewSourceFile("p.c")
	outer := file.AddElement(model.NoParent, logic.MustParse("CONFIG_A"), 1, 20)
	plain := file.AddElement(outer, logic.MustParse("DEBUG"), 2, 10)
	file.AddElement(plain, logic.MustParse("CONFIG_B"), 3, 5)
	file.AddElement(model.NoParent, logic.MustParse("HAVE_X"), 22, 24)

	views := New("CONFIG_").Project(file)
	require.Len(t, views, 2)

	assert.Equal(t, 0, views[0].Index)
	assert.Equal(t, 0, views[0].Depth)
	assert.Equal(t, "CONFIG_A", views[0].Condition.String())

	assert.Equal(t, 2, views[1].Index)
	assert.Equal(t, 2, views[1].Depth)
	assert.Equal(t, "CONFIG_B && DEBUG && CONFIG_A", views[1].PresenceCondition.String())
	assert.Equal(t, 3, views[1].StartLine)
	assert.Equal(t, 5, views[1].EndLine)
}
