package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_InsertLeadIfAbsent_Inserted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "sales@acme.com", "Pat Doe", "Acme Corp",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "found", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead := testLead("Sales@Acme.com")
	inserted, err := s.InsertLeadIfAbsent(context.Background(), lead)

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "sales@acme.com", lead.Email)
	assert.NotEmpty(t, lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertLeadIfAbsent_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "sales@acme.com", "Pat Doe", "Acme Corp",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "found", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.InsertLeadIfAbsent(context.Background(), testLead("sales@acme.com"))

	require.NoError(t, err)
	assert.False(t, inserted, "conflict on email is a duplicate, not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLead(context.Background(), "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkEmailed_Guarded(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE leads SET status = 'emailed'`).
		WithArgs("Hello", "Body", pgxmock.AnyArg(), pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkEmailed(context.Background(), "lead-1", "Hello", "Body", now, now.Add(7*24*time.Hour))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkEmailed_WrongStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE leads SET status = 'emailed'`).
		WithArgs("Hello", "Body", pgxmock.AnyArg(), pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	// The disambiguation lookup finds the row in status emailed.
	rows := pgxmock.NewRows([]string{"id", "email", "name", "company_name", "profile",
		"campaign_id", "status", "email_subject", "email_body", "follow_up_date",
		"created_at", "last_contacted_at", "sent_email_at", "has_replied"}).
		AddRow("lead-1", "sales@acme.com", "", "", []byte(`{}`), (*string)(nil),
			"emailed", "", "", (*time.Time)(nil), now, (*time.Time)(nil), (*time.Time)(nil), false)
	mock.ExpectQuery(`FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnRows(rows)

	err := s.MarkEmailed(context.Background(), "lead-1", "Hello", "Body", now, now.Add(time.Hour))

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkReplied(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET has_replied = TRUE`).
		WithArgs("lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkReplied(context.Background(), "lead-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DueFollowUps(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	due := now.Add(-time.Hour)

	rows := pgxmock.NewRows([]string{"id", "email", "name", "company_name", "profile",
		"campaign_id", "status", "email_subject", "email_body", "follow_up_date",
		"created_at", "last_contacted_at", "sent_email_at", "has_replied"}).
		AddRow("lead-1", "due@acme.com", "", "Acme Corp", []byte(`{"industry":"Manufacturing"}`),
			(*string)(nil), "emailed", "s", "b", &due, now, &due, &due, false)

	mock.ExpectQuery(`FROM leads WHERE status = 'emailed'`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)

	leads, err := s.DueFollowUps(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "due@acme.com", leads[0].Email)
	assert.Equal(t, model.LeadStatusEmailed, leads[0].Status)
	assert.Equal(t, "Manufacturing", leads[0].Profile.Industry)
	assert.NoError(t, mock.ExpectationsWereMet())
}
