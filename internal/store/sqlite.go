package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	search_query TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL DEFAULT '',
	company_name      TEXT NOT NULL DEFAULT '',
	profile           TEXT NOT NULL DEFAULT '{}',
	campaign_id       TEXT REFERENCES campaigns(id),
	status            TEXT NOT NULL DEFAULT 'found',
	email_subject     TEXT NOT NULL DEFAULT '',
	email_body        TEXT NOT NULL DEFAULT '',
	follow_up_date    DATETIME,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	last_contacted_at DATETIME,
	sent_email_at     DATETIME,
	has_replied       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_campaign_id ON leads(campaign_id);
CREATE INDEX IF NOT EXISTS idx_leads_follow_up_date ON leads(follow_up_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSelectLead = `SELECT id, email, name, company_name, profile, campaign_id,
	status, email_subject, email_body, follow_up_date, created_at,
	last_contacted_at, sent_email_at, has_replied FROM leads`

func (s *SQLiteStore) InsertLeadIfAbsent(ctx context.Context, lead *model.Lead) (bool, error) {
	email := model.NormalizeEmail(lead.Email)
	if !model.ValidEmail(email) {
		return false, eris.Errorf("sqlite: invalid lead email %q", lead.Email)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	profileJSON, err := json.Marshal(lead.Profile)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal profile")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO leads
		(id, email, name, company_name, profile, campaign_id, status, email_subject, email_body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, email, lead.Name, lead.CompanyName, string(profileJSON),
		nullable(lead.CampaignID), string(model.LeadStatusFound),
		lead.EmailSubject, lead.EmailBody, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert lead %s", email)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil
	}

	lead.ID = id
	lead.Email = email
	lead.Status = model.LeadStatusFound
	lead.CreatedAt = now
	return true, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectLead+` WHERE id = ?`, id)
	lead, err := scanSQLiteLead(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectLead+` WHERE email = ?`, model.NormalizeEmail(email))
	lead, err := scanSQLiteLead(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "lead email %s", email)
		}
		return nil, eris.Wrapf(err, "sqlite: get lead by email %s", email)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := sqliteSelectLead + ` WHERE 1=1`
	var args []any
	if filter.CampaignID != "" {
		query += ` AND campaign_id = ?`
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadEmail(ctx context.Context, id, subject, body string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET email_subject = ?, email_body = ? WHERE id = ?`,
		subject, body, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead email %s", id)
	}
	return s.checkLeadUpdated(ctx, res, id, false)
}

func (s *SQLiteStore) MarkEmailed(ctx context.Context, id, subject, body string, sentAt, followUpAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = 'emailed', email_subject = ?, email_body = ?,
		sent_email_at = ?, last_contacted_at = ?, follow_up_date = ?
		WHERE id = ? AND status = 'found'`,
		subject, body, sentAt.UTC(), sentAt.UTC(), followUpAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark emailed %s", id)
	}
	return s.checkLeadUpdated(ctx, res, id, true)
}

func (s *SQLiteStore) MarkFollowedUp(ctx context.Context, id, subject, body string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = 'followed_up', email_subject = ?, email_body = ?,
		last_contacted_at = ?, follow_up_date = NULL
		WHERE id = ? AND status = 'emailed'`,
		subject, body, sentAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark followed up %s", id)
	}
	return s.checkLeadUpdated(ctx, res, id, true)
}

func (s *SQLiteStore) MarkReplied(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE leads SET has_replied = 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark replied %s", id)
	}
	return s.checkLeadUpdated(ctx, res, id, false)
}

func (s *SQLiteStore) DueFollowUps(ctx context.Context, now time.Time) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		sqliteSelectLead+` WHERE status = 'emailed' AND has_replied = 0
		AND follow_up_date IS NOT NULL AND follow_up_date <= ?
		ORDER BY follow_up_date`,
		now.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: due follow-ups")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan due lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: due follow-ups iterate")
}

// checkLeadUpdated turns a zero-row update into ErrNotFound or, for guarded
// transitions, ErrInvalidTransition when the row exists in another status.
func (s *SQLiteStore) checkLeadUpdated(ctx context.Context, res sql.Result, id string, guarded bool) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	if !guarded {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	lead, err := s.GetLead(ctx, id)
	if err != nil {
		return err
	}
	return eris.Wrapf(ErrInvalidTransition, "lead %s in status %s", id, lead.Status)
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, name, searchQuery, notes string) (*model.Campaign, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, search_query, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, searchQuery, notes, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert campaign")
	}
	return &model.Campaign{ID: id, Name: name, SearchQuery: searchQuery, Notes: notes, CreatedAt: now}, nil
}

const sqliteSelectCampaign = `SELECT c.id, c.name, c.search_query, c.notes, c.created_at,
	count(l.id) FROM campaigns c LEFT JOIN leads l ON l.campaign_id = c.id`

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.db.QueryRowContext(ctx,
		sqliteSelectCampaign+` WHERE c.id = ? GROUP BY c.id`, id,
	).Scan(&c.ID, &c.Name, &c.SearchQuery, &c.Notes, &c.CreatedAt, &c.LeadCount)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "campaign %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectCampaign+` GROUP BY c.id ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.SearchQuery, &c.Notes, &c.CreatedAt, &c.LeadCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "sqlite: list campaigns iterate")
}

func scanSQLiteLead(row rowScanner) (*model.Lead, error) {
	var (
		lead        model.Lead
		profileJSON string
		campaignID  sql.NullString
		status      string
		followUp    sql.NullTime
		contacted   sql.NullTime
		sent        sql.NullTime
	)
	err := row.Scan(&lead.ID, &lead.Email, &lead.Name, &lead.CompanyName,
		&profileJSON, &campaignID, &status, &lead.EmailSubject, &lead.EmailBody,
		&followUp, &lead.CreatedAt, &contacted, &sent, &lead.HasReplied)
	if err != nil {
		return nil, err
	}
	lead.Status = model.LeadStatus(status)
	if campaignID.Valid {
		lead.CampaignID = campaignID.String
	}
	if followUp.Valid {
		t := followUp.Time
		lead.FollowUpDate = &t
	}
	if contacted.Valid {
		t := contacted.Time
		lead.LastContactedAt = &t
	}
	if sent.Valid {
		t := sent.Time
		lead.SentEmailAt = &t
	}
	if profileJSON != "" {
		if err := json.Unmarshal([]byte(profileJSON), &lead.Profile); err != nil {
			return nil, eris.Wrap(err, "unmarshal profile")
		}
	}
	return &lead, nil
}
