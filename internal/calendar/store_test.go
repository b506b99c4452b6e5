package calendar

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresTokenStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresTokenStore(mock)
	expiry := time.Date(2026, 10, 14, 13, 0, 0, 0, time.UTC)
	cols := []string{"calendar_id", "access_token", "refresh_token", "token_expiry"}

	mock.ExpectQuery("SELECT calendar_id").WithArgs("dr-ada").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("work@clinic.test", "tok", "ref", &expiry))
	conn, err := store.Connection(context.Background(), "dr-ada")
	require.NoError(t, err)
	assert.Equal(t, "work@clinic.test", conn.CalendarID)
	assert.Equal(t, "tok", conn.Token.AccessToken)
	assert.Equal(t, expiry, conn.Token.Expiry)

	mock.ExpectQuery("SELECT calendar_id").WithArgs("dr-ben").WillReturnRows(pgxmock.NewRows(cols))
	_, err = store.Connection(context.Background(), "dr-ben")
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, mock.ExpectationsWereMet())
}
