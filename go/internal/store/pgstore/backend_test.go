package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mcdev12/roomboard/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ch chan *pq.Notification
}

func (f *fakeSource) NotificationChannel() <-chan *pq.Notification { return f.ch }
func (f *fakeSource) Ping() error                                  { return nil }
func (f *fakeSource) Close() error                                 { return nil }

func setupBackend(t *testing.T) (*Backend, sqlmock.Sqlmock, *fakeSource) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src := &fakeSource{ch: make(chan *pq.Notification, 4)}
	b := NewWithSource(db, src, DefaultConfig())
	t.Cleanup(func() { b.Close() })
	return b, mock, src
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func TestLoad(t *testing.T) {
	b, mock, _ := setupBackend(t)

	mock.ExpectQuery(q(selectBodySQL)).
		WithArgs("sections/h1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"d1":{}}`)))
	mock.ExpectQuery(q(selectBodySQL)).
		WithArgs("sections/h2").
		WillReturnError(sql.ErrNoRows)

	raw, err := b.Load(context.Background(), "sections/h1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"d1":{}}`, string(raw))

	raw, err = b.Load(context.Background(), "sections/h2")
	require.NoError(t, err)
	assert.Nil(t, raw)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateUpsertsAndNotifies(t *testing.T) {
	b, mock, _ := setupBackend(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(lockRootSQL)).WithArgs("users/u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(selectForUpdate)).WithArgs("users/u1").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(q(upsertBodySQL)).WithArgs("users/u1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(notifyChangedSQL)).WithArgs("roomboard_documents", "users/u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := b.Mutate(context.Background(), "users/u1", func(current []byte) ([]byte, error) {
		assert.Nil(t, current)
		return []byte(`{"email":"a@b.c"}`), nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateDeletesEmptyDocument(t *testing.T) {
	b, mock, _ := setupBackend(t)

	mock.ExpectBegin()
	mock.ExpectExec(q(lockRootSQL)).WithArgs("users/u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(selectForUpdate)).WithArgs("users/u1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"email":"a@b.c"}`)))
	mock.ExpectExec(q(deleteBodySQL)).WithArgs("users/u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(notifyChangedSQL)).WithArgs("roomboard_documents", "users/u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := b.Mutate(context.Background(), "users/u1", func(current []byte) ([]byte, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateRollsBackOnError(t *testing.T) {
	b, mock, _ := setupBackend(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(q(lockRootSQL)).WithArgs("users/u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q(selectForUpdate)).WithArgs("users/u1").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := b.Mutate(context.Background(), "users/u1", func(current []byte) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchFansOutNotifications(t *testing.T) {
	b, _, src := setupBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h1, err := b.Watch(ctx, "sections/h1")
	require.NoError(t, err)
	h2, err := b.Watch(ctx, "sections/h2")
	require.NoError(t, err)

	src.ch <- &pq.Notification{Channel: "roomboard_documents", Extra: "sections/h1"}
	expectEvent(t, h1)
	expectNone(t, h2)

	// reconnect marker wakes every watcher
	src.ch <- nil
	expectEvent(t, h1)
	expectEvent(t, h2)
}

func expectEvent(t *testing.T, ch <-chan store.WatchEvent) {
	t.Helper()
	select {
	case ev := <-ch:
		assert.NoError(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("expected watch event")
	}
}

func expectNone(t *testing.T, ch <-chan store.WatchEvent) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected watch event")
	case <-time.After(50 * time.Millisecond):
	}
}
