package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/db"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot paths: discovery inserts and the scheduler sweep.
var preparedStatements = map[string]string{
	"insert_lead":     insertLeadSQL,
	"get_lead":        selectLeadSQL + ` WHERE id = $1`,
	"mark_emailed":    markEmailedSQL,
	"mark_followedup": markFollowedUpSQL,
	"due_followups":   dueFollowUpsSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	search_query TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email             TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL DEFAULT '',
	company_name      TEXT NOT NULL DEFAULT '',
	profile           JSONB NOT NULL DEFAULT '{}',
	campaign_id       TEXT REFERENCES campaigns(id),
	status            TEXT NOT NULL DEFAULT 'found',
	email_subject     TEXT NOT NULL DEFAULT '',
	email_body        TEXT NOT NULL DEFAULT '',
	follow_up_date    TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_contacted_at TIMESTAMPTZ,
	sent_email_at     TIMESTAMPTZ,
	has_replied       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_campaign_id ON leads(campaign_id);
CREATE INDEX IF NOT EXISTS idx_leads_due_followup
	ON leads(follow_up_date)
	WHERE status = 'emailed' AND has_replied = FALSE;
`

const insertLeadSQL = `INSERT INTO leads
	(id, email, name, company_name, profile, campaign_id, status, email_subject, email_body, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (email) DO NOTHING`

const selectLeadSQL = `SELECT id, email, name, company_name, profile, campaign_id,
	status, email_subject, email_body, follow_up_date, created_at,
	last_contacted_at, sent_email_at, has_replied FROM leads`

const markEmailedSQL = `UPDATE leads SET status = 'emailed', email_subject = $1,
	email_body = $2, sent_email_at = $3, last_contacted_at = $3, follow_up_date = $4
	WHERE id = $5 AND status = 'found'`

const markFollowedUpSQL = `UPDATE leads SET status = 'followed_up', email_subject = $1,
	email_body = $2, last_contacted_at = $3, follow_up_date = NULL
	WHERE id = $4 AND status = 'emailed'`

const dueFollowUpsSQL = selectLeadSQL + ` WHERE status = 'emailed'
	AND has_replied = FALSE AND follow_up_date IS NOT NULL AND follow_up_date <= $1
	ORDER BY follow_up_date`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertLeadIfAbsent(ctx context.Context, lead *model.Lead) (bool, error) {
	email := model.NormalizeEmail(lead.Email)
	if !model.ValidEmail(email) {
		return false, eris.Errorf("postgres: invalid lead email %q", lead.Email)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	profileJSON, err := json.Marshal(lead.Profile)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal profile")
	}

	tag, err := s.pool.Exec(ctx, insertLeadSQL,
		id, email, lead.Name, lead.CompanyName, profileJSON,
		nullable(lead.CampaignID), string(model.LeadStatusFound),
		lead.EmailSubject, lead.EmailBody, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert lead %s", email)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	lead.ID = id
	lead.Email = email
	lead.Status = model.LeadStatusFound
	lead.CreatedAt = now
	return true, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, selectLeadSQL+` WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, selectLeadSQL+` WHERE email = $1`, model.NormalizeEmail(email))
	lead, err := scanLead(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "lead email %s", email)
		}
		return nil, eris.Wrapf(err, "postgres: get lead by email %s", email)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := selectLeadSQL
	var conds []string
	var args []any
	if filter.CampaignID != "" {
		args = append(args, filter.CampaignID)
		conds = append(conds, fmt.Sprintf("campaign_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads rows")
}

func (s *PostgresStore) UpdateLeadEmail(ctx context.Context, id, subject, body string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET email_subject = $1, email_body = $2 WHERE id = $3`,
		subject, body, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead email %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkEmailed(ctx context.Context, id, subject, body string, sentAt, followUpAt time.Time) error {
	tag, err := s.pool.Exec(ctx, markEmailedSQL, subject, body, sentAt.UTC(), followUpAt.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark emailed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, id)
	}
	return nil
}

func (s *PostgresStore) MarkFollowedUp(ctx context.Context, id, subject, body string, sentAt time.Time) error {
	tag, err := s.pool.Exec(ctx, markFollowedUpSQL, subject, body, sentAt.UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark followed up %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionFailure(ctx, id)
	}
	return nil
}

func (s *PostgresStore) MarkReplied(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE leads SET has_replied = TRUE WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark replied %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *PostgresStore) DueFollowUps(ctx context.Context, now time.Time) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, dueFollowUpsSQL, now.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: due follow-ups")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan due lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: due follow-ups rows")
}

// transitionFailure disambiguates a zero-row guarded update: missing row vs
// row in the wrong status.
func (s *PostgresStore) transitionFailure(ctx context.Context, id string) error {
	lead, err := s.GetLead(ctx, id)
	if err != nil {
		return err
	}
	return eris.Wrapf(ErrInvalidTransition, "lead %s in status %s", id, lead.Status)
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, name, searchQuery, notes string) (*model.Campaign, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, search_query, notes, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, name, searchQuery, notes, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert campaign")
	}
	return &model.Campaign{ID: id, Name: name, SearchQuery: searchQuery, Notes: notes, CreatedAt: now}, nil
}

const selectCampaignSQL = `SELECT c.id, c.name, c.search_query, c.notes, c.created_at,
	count(l.id) FROM campaigns c LEFT JOIN leads l ON l.campaign_id = c.id`

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.pool.QueryRow(ctx,
		selectCampaignSQL+` WHERE c.id = $1 GROUP BY c.id`, id,
	).Scan(&c.ID, &c.Name, &c.SearchQuery, &c.Notes, &c.CreatedAt, &c.LeadCount)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "campaign %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get campaign %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := s.pool.Query(ctx, selectCampaignSQL+` GROUP BY c.id ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.SearchQuery, &c.Notes, &c.CreatedAt, &c.LeadCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "postgres: list campaigns rows")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	var (
		lead        model.Lead
		profileJSON []byte
		campaignID  *string
		status      string
	)
	err := row.Scan(&lead.ID, &lead.Email, &lead.Name, &lead.CompanyName,
		&profileJSON, &campaignID, &status, &lead.EmailSubject, &lead.EmailBody,
		&lead.FollowUpDate, &lead.CreatedAt, &lead.LastContactedAt,
		&lead.SentEmailAt, &lead.HasReplied)
	if err != nil {
		return nil, err
	}
	lead.Status = model.LeadStatus(status)
	if campaignID != nil {
		lead.CampaignID = *campaignID
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &lead.Profile); err != nil {
			return nil, eris.Wrap(err, "unmarshal profile")
		}
	}
	return &lead, nil
}

// nullable maps "" to NULL for optional foreign keys.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
