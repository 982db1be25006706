package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdeps/internal/ir"
)

func seedPasses(t *testing.T, s *Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		field := "qty"
		if i%2 == 0 {
			field = "country"
		}
		res := samplePass(fmt.Sprintf("pass-%02d", i), int64(i), field)
		if field == "country" {
			res.Diagnostics = nil
		}
		require.NoError(t, s.WritePass(ctx, res))
	}
}

func passIDs(results []ir.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.PassID
	}
	return ids
}

func TestReadPasses_All(t *testing.T) {
	s := createTestStore(t)
	seedPasses(t, s, 4)

	got, err := s.ReadPasses(context.Background(), PassQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"pass-01", "pass-02", "pass-03", "pass-04"}, passIDs(got))
	assert.Len(t, got[0].Mutations, 2)
}

func TestReadPasses_Empty(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadPasses(context.Background(), PassQuery{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadPasses_LimitKeepsNewestOldestFirst(t *testing.T) {
	s := createTestStore(t)
	seedPasses(t, s, 5)

	got, err := s.ReadPasses(context.Background(), PassQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"pass-04", "pass-05"}, passIDs(got))
}

func TestReadPasses_Filters(t *testing.T) {
	s := createTestStore(t)
	seedPasses(t, s, 4)
	ctx := context.Background()

	byField, err := s.ReadPasses(ctx, PassQuery{FieldID: "country"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pass-02", "pass-04"}, passIDs(byField))

	byCode, err := s.ReadPasses(ctx, PassQuery{Code: ir.DiagCyclicPropagationTruncated})
	require.NoError(t, err)
	assert.Equal(t, []string{"pass-01", "pass-03"}, passIDs(byCode))

	both, err := s.ReadPasses(ctx, PassQuery{FieldID: "country", Code: ir.DiagCyclicPropagationTruncated})
	require.NoError(t, err)
	assert.Empty(t, both)
}

func TestReadPasses_SeqTiesBrokenByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WritePass(ctx, samplePass("b", 1, "qty")))
	require.NoError(t, s.WritePass(ctx, samplePass("a", 1, "qty")))

	got, err := s.ReadPasses(ctx, PassQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, passIDs(got))
}

func TestReadPass_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadPass(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	seedPasses(t, s, 3)
	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestReadTestRuns_OrderAndLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, dep := range []string{"show-state", "hide-state", "show-state"} {
		_, err := s.WriteTestRun(ctx, TestRun{
			DependencyID: dep,
			Result:       ir.TestFail,
			TestedAt:     base.Add(time.Duration(i) * time.Minute),
			Diagnostics:  []ir.Diagnostic{ir.MissingField(dep, "region")},
		})
		require.NoError(t, err)
	}

	all, err := s.ReadTestRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, base.Add(2*time.Minute).Equal(all[0].TestedAt))
	assert.Equal(t, "region", all[0].Diagnostics[0].FieldID)

	show, err := s.ReadTestRuns(ctx, "show-state", 1)
	require.NoError(t, err)
	require.Len(t, show, 1)
	assert.True(t, base.Add(2*time.Minute).Equal(show[0].TestedAt))
}
