package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/queuehub/queuehub/internal/model"
)

func TestMessageCloneIsolatesMutableFields(t *testing.T) {
	ts := time.Now()
	original := model.Message{
		UUID:                "u1",
		SubQueue:            "sq",
		Payload:             model.Payload{Data: []byte("hello")},
		AssignmentTimestamp: &ts,
	}

	clone := original.Clone()
	clone.Payload.Data[0] = 'H'
	*clone.AssignmentTimestamp = ts.Add(time.Hour)

	require.Equal(t, byte('h'), original.Payload.Data[0])
	require.Equal(t, ts, *original.AssignmentTimestamp)
}

func TestIsAssigned(t *testing.T) {
	require.False(t, model.Message{}.IsAssigned())
	require.True(t, model.Message{AssignedTo: "owner"}.IsAssigned())
}

func TestFilterMatches(t *testing.T) {
	assigned := model.Message{AssignedTo: "alice"}
	unassigned := model.Message{}

	require.True(t, model.Filter{Mode: model.FilterAll}.Matches(assigned))
	require.True(t, model.Filter{Mode: model.FilterAssigned}.Matches(assigned))
	require.False(t, model.Filter{Mode: model.FilterAssigned}.Matches(unassigned))
	require.True(t, model.Filter{Mode: model.FilterUnassigned}.Matches(unassigned))
	require.True(t, model.Filter{Mode: model.FilterAssignedTo, AssignedTo: "alice"}.Matches(assigned))
	require.False(t, model.Filter{Mode: model.FilterAssignedTo, AssignedTo: "bob"}.Matches(assigned))
}
