package journal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"driftstream/internal/member"
)

func TestRecordAndRangeQuery(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	events := []member.Event{
		{Type: member.EventWarningOpened, MemberID: 0, Instances: 10, Error: 0.1},
		{Type: member.EventWarningOpened, MemberID: 1, Instances: 20, Error: 0.2},
		{Type: member.EventDriftBackground, MemberID: 1, Instances: 20, Error: 0.3, HistoryID: 1},
		{Type: member.EventDriftRecurring, MemberID: 0, Instances: 30, Error: 0.05, HistoryID: 2, Group: "g1"},
	}
	for _, ev := range events {
		require.NoError(t, j.Record(ev))
	}

	got, err := j.EventsBetween(15, 25)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, member.EventWarningOpened, got[0].Type)
	require.Equal(t, member.EventDriftBackground, got[1].Type)
	require.EqualValues(t, 1, got[1].HistoryID)

	all, err := j.EventsBetween(0, 100)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.EqualValues(t, 10, all[0].Instances)
	require.Equal(t, "g1", all[3].Group)
}

func TestEventsBetweenEmptyRange(t *testing.T) {
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	got, err := j.EventsBetween(0, 1000)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEventsSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record(member.Event{Type: member.EventDriftColdReset, MemberID: 2, Instances: 40}))
	require.NoError(t, j.Close())

	j2, err := Open(dir)
	require.NoError(t, err)
	defer j2.Close()

	got, err := j2.EventsBetween(0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, member.EventDriftColdReset, got[0].Type)
	require.Equal(t, 2, got[0].MemberID)
}
