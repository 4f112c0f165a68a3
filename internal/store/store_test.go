package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateSessionAndRun(t *testing.T) {
	db := openTestDB(t)

	sess, err := db.CreateSession(SessionRun, "tester")
	require.NoError(t, err)
	assert.NotEqual(t, sess.UUID.String(), "")

	run, err := db.CreateRun(sess.UUID, "yak-42", "file:///wf.wdl", "yak", "{}", "runs/yak-42")
	require.NoError(t, err)
	assert.Equal(t, RunPending, run.Status)

	fetched, err := db.GetRun(run.UUID)
	require.NoError(t, err)
	assert.Equal(t, run.Name, fetched.Name)
	assert.Nil(t, fetched.StartedAt)
}

func TestRunStatusTransitionsSetTimestamps(t *testing.T) {
	db := openTestDB(t)
	sess, _ := db.CreateSession(SessionRun, "tester")
	run, _ := db.CreateRun(sess.UUID, "yak-1", "file:///wf.wdl", "yak", "{}", "runs/yak-1")

	start := time.Now().UTC()
	require.NoError(t, db.SetRunStatus(run.UUID, RunRunning, start))
	fetched, err := db.GetRun(run.UUID)
	require.NoError(t, err)
	require.NotNil(t, fetched.StartedAt)
	assert.WithinDuration(t, start, *fetched.StartedAt, time.Second)
	assert.Nil(t, fetched.CompletedAt)

	end := start.Add(time.Second)
	require.NoError(t, db.SetRunStatus(run.UUID, RunCompleted, end))
	fetched, err = db.GetRun(run.UUID)
	require.NoError(t, err)
	require.NotNil(t, fetched.CompletedAt)
	assert.WithinDuration(t, end, *fetched.CompletedAt, time.Second)
}

func TestSetRunStatusIdempotentOnSameState(t *testing.T) {
	db := openTestDB(t)
	sess, _ := db.CreateSession(SessionRun, "tester")
	run, _ := db.CreateRun(sess.UUID, "yak-1", "file:///wf.wdl", "yak", "{}", "runs/yak-1")

	require.NoError(t, db.SetRunStatus(run.UUID, RunPending, time.Now().UTC()))
	fetched, err := db.GetRun(run.UUID)
	require.NoError(t, err)
	assert.Equal(t, RunPending, fetched.Status)
}

func TestLatestIndexEntriesBreaksTiesByInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	sess, _ := db.CreateSession(SessionRun, "tester")
	run, _ := db.CreateRun(sess.UUID, "yak-1", "file:///wf.wdl", "yak", "{}", "runs/yak-1")

	now := time.Now().UTC()
	require.NoError(t, db.AppendIndexLogEntry(run.UUID, "index/experiment/result.txt", "runs/yak-1/result.txt", now))
	require.NoError(t, db.AppendIndexLogEntry(run.UUID, "index/experiment/result.txt", "runs/yak-2/result.txt", now))

	entries, err := db.LatestIndexEntries("index/experiment")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "runs/yak-2/result.txt", entries[0].TargetPath)
}
