package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestDefaultCheckerConfig(t *testing.T) {
	assert.Equal(t, 2*time.Second, DefaultCheckerConfig().Timeout)
}

func TestDatabaseChecker_NilDB(t *testing.T) {
	err := DatabaseChecker(nil)()

	require.Error(t, err)
	assert.Equal(t, "database connection is nil", err.Error())
}

func TestDatabaseChecker_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	assert.NoError(t, DatabaseChecker(db)())

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.EqualError(t, DatabaseCheckerWithConfig(db, CheckerConfig{Timeout: time.Second})(), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolChecker(t *testing.T) {
	assert.NoError(t, PoolChecker(fakePinger{})())
	assert.Error(t, PoolChecker(fakePinger{err: errors.New("down")})())
	assert.Error(t, PoolChecker(nil)())
}

func TestRedisChecker(t *testing.T) {
	client, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, RedisChecker(client)())

	mock.ExpectPing().SetErr(errors.New("i/o timeout"))
	assert.Error(t, RedisChecker(client)())

	assert.Error(t, RedisChecker(nil)())
}

func TestNATSChecker_Nil(t *testing.T) {
	assert.EqualError(t, NATSChecker(nil)(), "nats connection is nil")
}

func TestCachedChecker(t *testing.T) {
	calls := 0
	failing := errors.New("unhealthy")
	cached := NewCachedChecker(func() error {
		calls++
		return failing
	}, time.Hour)

	assert.ErrorIs(t, cached.Check(), failing)
	assert.ErrorIs(t, cached.Check(), failing)
	assert.Equal(t, 1, calls)
}

func TestCachedChecker_Expires(t *testing.T) {
	calls := 0
	cached := NewCachedChecker(func() error {
		calls++
		return nil
	}, time.Millisecond)

	require.NoError(t, cached.Check())
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cached.Check())
	assert.Equal(t, 2, calls)
}
