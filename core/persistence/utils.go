package persistence

import (
	"time"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/core/query"
)

func createEvent(
	eventType PersistenceEventType,
	operation string,
	model string,
	input any,
	output []core.Record,
	filters []query.QueryFilter,
	err error,
	startTime time.Time,
) PersistenceEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	var errStr *string
	if err != nil {
		s := err.Error()
		errStr = &s
	}

	return PersistenceEvent{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Operation: operation,
		Model:     model,
		Input:     input,
		Output:    output,
		Error:     errStr,
		Query:     filters,
		Duration:  duration,
	}
}

// outcome picks the success or failure event of an operation.
func outcome(operation string, failed bool) PersistenceEventType {
	status := "success"
	if failed {
		status = "failed"
	}
	return PersistenceEventType("record:" + operation + ":" + status)
}
