package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-undead/internal/config"
	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/pkg/logic"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/store"
)

func TestAnalyze_WritesReportAndResetsCacheCounters(t *testing.T) {
	st, err := store.Open(store.Config{InMemory: true, Logger: log.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	vm, err := model.NewVariabilityModel([]model.Variable{{Name: "CONFIG_A"}}, []logic.Formula{logic.MustParse("!CONFIG_A")})
	require.NoError(t, err)
	bm, err := model.NewBuildModel([]model.BuildEntry{{Path: "a.c", Condition: logic.True}})
	require.NoError(t, err)
	f := model.NewSourceFile("a.c")
	f.AddElement(model.NoParent, logic.MustParse("CONFIG_A"), 2, 4)

	_, err = st.Commit(store.Revision{VariabilityModel: vm, BuildModel: bm, Files: []*model.SourceFile{f}})
	require.NoError(t, err)
	_, err = st.Commit(store.Revision{Files: []*model.SourceFile{f}})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.CodeModelOptimization = true
	metricsFile := filepath.Join(t.TempDir(), "metrics.prom")

	var out bytes.Buffer
	summary, err := analyze(context.Background(), cfg, st, log.Discard(), &out, metricsFile)
	require.NoError(t, err)

	assert.True(t, summary.Decision.ReduceCodeModel)
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Empty(t, out.String())
	assert.FileExists(t, metricsFile)

	stats := st.CacheStats()
	assert.Equal(t, int64(0), stats.HitCount+stats.MissCount)
	assert.Equal(t, 1, stats.Length)
}

func TestAnalyze_RejectsUnknownFormat(t *testing.T) {
	st, err := store.Open(store.Config{InMemory: true, Logger: log.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.DefaultConfig()
	cfg.Format = "xml"
	_, err = analyze(context.Background(), cfg, st, log.Discard(), &bytes.Buffer{}, "")
	assert.Error(t, err)
}
