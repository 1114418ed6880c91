package handlers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/repairshop-service/internal/api/dto"
	"github.com/spec-kit/repairshop-service/internal/service"
)

func turnaroundRows(n int) []service.TaskTurnaround {
	rows := make([]service.TaskTurnaround, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, service.TaskTurnaround{TaskID: fmt.Sprintf("task-%d", i+1)})
	}
	return rows
}

func TestPageSliceBoundsTurnaroundDetail(t *testing.T) {
	rows := turnaroundRows(5)

	first := pageSlice(rows, 1, 2)
	assert.Len(t, first, 2)
	assert.Equal(t, "task-1", first[0].TaskID)

	last := pageSlice(rows, 3, 2)
	assert.Len(t, last, 1)
	assert.Equal(t, "task-5", last[0].TaskID)

	assert.Empty(t, pageSlice(rows, 4, 2))
	assert.Len(t, pageSlice(rows, 1, 100), 5)
}

func TestTurnaroundPaginationEnvelope(t *testing.T) {
	pagination := dto.NewPagination(2, 2, 5)

	assert.Equal(t, 2, pagination.CurrentPage)
	assert.Equal(t, 2, pagination.PageSize)
	assert.Equal(t, 5, pagination.TotalItems)
	assert.Equal(t, 3, pagination.TotalPages)
	assert.True(t, pagination.HasNext)
	assert.True(t, pagination.HasPrevious)
}
