package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/doris-core/internal/core"
	"github.com/nucleus/doris-core/internal/logger"
)

func TestObjectString(t *testing.T) {
	assert.Equal(t, "`ods`.`t`", TableObject("ods", "t").String())
	assert.Equal(t, "`ods`.`t` PARTITION (`p1`)", PartitionObject("ods", "t", "p1").String())
	assert.Equal(t, "`ods`.`t` TEMPORARY PARTITION (`p1_tmp`)", TempPartitionObject("ods", "t", "p1_tmp").String())
}

func TestChecker(t *testing.T) {
	a, b := TableObject("ods", "t"), TableObject("ods", "t_tmp")

	q := newFakeQuerier()
	q.on(countQueryHead, map[string]any{"ct": int64(42)})
	require.NoError(t, NewChecker(q, logger.NopLogger).Check(context.Background(), "t", a, b))
	assert.Equal(t, []string{CountQuery(a, b)}, q.queried)

	q = newFakeQuerier()
	q.on(countQueryHead, map[string]any{"ct": int64(10)}, map[string]any{"ct": int64(11)})
	err := NewChecker(q, logger.NopLogger).Check(context.Background(), "t", a, b)
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeConsistency))
	assert.Contains(t, err.Error(), "[10 11]")

	q = newFakeQuerier()
	q.failOn[countQueryHead] = errors.New("lost connection")
	err = NewChecker(q, logger.NopLogger).Check(context.Background(), "t", a, b)
	assert.EqualError(t, err, "lost connection")
}
