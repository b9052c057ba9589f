// Package storage keeps a SQLite history of catalog builds. Every build is
// diffed against the stored state, which is then replaced: templates and
// versions that disappeared are swept and logged as removals.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smtindex/smtindex/pkg/catalog"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS builds (
  id             INTEGER PRIMARY KEY,
  generated_at   TEXT NOT NULL,
  recorded_at    TEXT NOT NULL,
  template_count INTEGER NOT NULL,
  version_count  INTEGER NOT NULL,
  git_commit     TEXT,
  tool_version   TEXT,
  catalog_json   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS templates (
  id             TEXT PRIMARY KEY,
  name           TEXT NOT NULL,
  idta_number    TEXT,
  status         TEXT NOT NULL,
  raw_status     TEXT,
  description    TEXT,
  latest_version TEXT,
  version_count  INTEGER NOT NULL DEFAULT 0,
  run_id         INTEGER NOT NULL DEFAULT 0,
  first_seen_at  TEXT NOT NULL,
  last_seen_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_templates_status ON templates(status);
CREATE TABLE IF NOT EXISTS template_versions (
  id            INTEGER PRIMARY KEY,
  template_id   TEXT NOT NULL,
  version       TEXT NOT NULL,
  is_latest     INTEGER NOT NULL CHECK (is_latest IN (0,1)),
  pdf_link      TEXT,
  github_link   TEXT,
  run_id        INTEGER NOT NULL DEFAULT 0,
  first_seen_at TEXT NOT NULL,
  last_seen_at  TEXT NOT NULL,
  UNIQUE(template_id, version)
);
CREATE INDEX IF NOT EXISTS idx_versions_template ON template_versions(template_id);
CREATE TABLE IF NOT EXISTS catalog_changes (
  id          INTEGER PRIMARY KEY,
  occurred_at TEXT NOT NULL,
  build_id    INTEGER NOT NULL,
  template_id TEXT NOT NULL,
  name        TEXT NOT NULL,
  version     TEXT NOT NULL DEFAULT '',
  change_type TEXT NOT NULL CHECK (change_type IN ('added','updated','removed')),
  detail      TEXT
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON catalog_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_changes_template ON catalog_changes(template_id, occurred_at);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// UpsertCatalog records c as a new build and brings the templates and
// template_versions tables in line with it, logging every difference.
func (d *DB) UpsertCatalog(ctx context.Context, c *catalog.Catalog) (res *UpsertResult, err error) {
	now := time.Now().UTC()
	stamp := formatTime(now)

	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding catalog: %w", err)
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var gitCommit, toolVersion string
	if p := c.Provenance; p != nil {
		gitCommit, toolVersion = deref(p.GitCommit), p.ToolVersion
	}

	r, err := tx.ExecContext(ctx, `INSERT INTO builds(generated_at, recorded_at, template_count, version_count, git_commit, tool_version, catalog_json) VALUES(?,?,?,?,?,?,?)`,
		formatTime(c.GeneratedAt.Time), stamp, len(c.Templates), c.VersionCount(), nullIfEmpty(gitCommit), nullIfEmpty(toolVersion), string(payload))
	if err != nil {
		return nil, err
	}
	runID, err := r.LastInsertId()
	if err != nil {
		return nil, err
	}

	res = &UpsertResult{BuildID: runID}

	existing, err := loadTemplates(ctx, tx)
	if err != nil {
		return nil, err
	}
	res.IsFirstRun = len(existing) == 0

	existingVersions, err := loadVersions(ctx, tx)
	if err != nil {
		return nil, err
	}

	record := func(ch Change) error {
		ch.OccurredAt, ch.BuildID = now, runID
		res.Changes = append(res.Changes, ch)
		_, err := tx.ExecContext(ctx, `INSERT INTO catalog_changes(occurred_at, build_id, template_id, name, version, change_type, detail) VALUES(?,?,?,?,?,?,?)`,
			stamp, runID, ch.TemplateID, ch.Name, ch.Version, ch.ChangeType, nullIfEmpty(ch.Detail))
		return err
	}

	for _, t := range c.Templates {
		row := templateRow(t)

		if old, ok := existing[t.ID]; !ok {
			_, err = tx.ExecContext(ctx, `INSERT INTO templates(id, name, idta_number, status, raw_status, description, latest_version, version_count, run_id, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
				row.ID, row.Name, nullIfEmpty(row.IDTANumber), row.Status, nullIfEmpty(row.RawStatus), nullIfEmpty(row.Description), nullIfEmpty(row.LatestVersion), row.VersionCount, runID, stamp, stamp)
			if err != nil {
				return nil, err
			}
			if err = record(Change{TemplateID: t.ID, Name: t.Name, ChangeType: ChangeAdded}); err != nil {
				return nil, err
			}
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE templates SET name = ?, idta_number = ?, status = ?, raw_status = ?, description = ?, latest_version = ?, version_count = ?, run_id = ?, last_seen_at = ? WHERE id = ?`,
				row.Name, nullIfEmpty(row.IDTANumber), row.Status, nullIfEmpty(row.RawStatus), nullIfEmpty(row.Description), nullIfEmpty(row.LatestVersion), row.VersionCount, runID, stamp, row.ID)
			if err != nil {
				return nil, err
			}
			if detail := templateDiff(old, row); detail != "" {
				if err = record(Change{TemplateID: t.ID, Name: t.Name, ChangeType: ChangeUpdated, Detail: detail}); err != nil {
					return nil, err
				}
			}
		}

		for _, v := range t.Versions {
			vr := versionRow{
				IsLatest: v.IsLatest,
				PDF:      deref(v.Links.PDF),
				GitHub:   deref(v.Links.GitHub),
			}
			old, ok := existingVersions[versionKey(t.ID, v.Version)]
			if !ok {
				_, err = tx.ExecContext(ctx, `INSERT INTO template_versions(template_id, version, is_latest, pdf_link, github_link, run_id, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?)`,
					t.ID, v.Version, boolToInt(vr.IsLatest), nullIfEmpty(vr.PDF), nullIfEmpty(vr.GitHub), runID, stamp, stamp)
				if err != nil {
					return nil, err
				}
				// A new template's versions are implied by its own added row.
				if existing[t.ID] != nil {
					if err = record(Change{TemplateID: t.ID, Name: t.Name, Version: v.Version, ChangeType: ChangeAdded}); err != nil {
						return nil, err
					}
				}
				continue
			}

			_, err = tx.ExecContext(ctx, `UPDATE template_versions SET is_latest = ?, pdf_link = ?, github_link = ?, run_id = ?, last_seen_at = ? WHERE template_id = ? AND version = ?`,
				boolToInt(vr.IsLatest), nullIfEmpty(vr.PDF), nullIfEmpty(vr.GitHub), runID, stamp, t.ID, v.Version)
			if err != nil {
				return nil, err
			}
			if detail := versionDiff(old, vr); detail != "" {
				if err = record(Change{TemplateID: t.ID, Name: t.Name, Version: v.Version, ChangeType: ChangeUpdated, Detail: detail}); err != nil {
					return nil, err
				}
			}
		}
	}

	// Sweep: delete rows not touched in this run, log removals.
	staleVersions, err := staleRows(ctx, tx, `SELECT v.template_id, COALESCE(t.name, ''), v.version, COALESCE(t.run_id, 0) FROM template_versions v LEFT JOIN templates t ON t.id = v.template_id WHERE v.run_id != ?`, runID)
	if err != nil {
		return nil, err
	}
	for _, s := range staleVersions {
		// Versions of a removed template go with its own removal.
		if s.templateRun != runID {
			continue
		}
		if err = record(Change{TemplateID: s.templateID, Name: s.name, Version: s.version, ChangeType: ChangeRemoved}); err != nil {
			return nil, err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM template_versions WHERE run_id != ?`, runID); err != nil {
		return nil, err
	}

	staleTemplates, err := staleRows(ctx, tx, `SELECT id, name, '', run_id FROM templates WHERE run_id != ?`, runID)
	if err != nil {
		return nil, err
	}
	for _, s := range staleTemplates {
		if err = record(Change{TemplateID: s.templateID, Name: s.name, ChangeType: ChangeRemoved}); err != nil {
			return nil, err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM templates WHERE run_id != ?`, runID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

type versionRow struct {
	IsLatest bool
	PDF      string
	GitHub   string
}

type staleRow struct {
	templateID  string
	name        string
	version     string
	templateRun int64
}

func staleRows(ctx context.Context, tx *sql.Tx, query string, runID int64) ([]staleRow, error) {
	rows, err := tx.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []staleRow
	for rows.Next() {
		var s staleRow
		if err := rows.Scan(&s.templateID, &s.name, &s.version, &s.templateRun); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func loadTemplates(ctx context.Context, tx *sql.Tx) (map[string]*Template, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name, idta_number, status, raw_status, description, latest_version, version_count FROM templates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*Template)
	for rows.Next() {
		var (
			t                                      Template
			number, rawStatus, description, latest sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Name, &number, &t.Status, &rawStatus, &description, &latest, &t.VersionCount); err != nil {
			return nil, err
		}
		t.IDTANumber = nullString(number)
		t.RawStatus = nullString(rawStatus)
		t.Description = nullString(description)
		t.LatestVersion = nullString(latest)
		out[t.ID] = &t
	}
	return out, rows.Err()
}

func loadVersions(ctx context.Context, tx *sql.Tx) (map[string]versionRow, error) {
	rows, err := tx.QueryContext(ctx, `SELECT template_id, version, is_latest, pdf_link, github_link FROM template_versions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]versionRow)
	for rows.Next() {
		var (
			id, version string
			latest      int
			pdf, gh     sql.NullString
		)
		if err := rows.Scan(&id, &version, &latest, &pdf, &gh); err != nil {
			return nil, err
		}
		out[versionKey(id, version)] = versionRow{IsLatest: latest == 1, PDF: nullString(pdf), GitHub: nullString(gh)}
	}
	return out, rows.Err()
}

func templateRow(t catalog.TemplateRecord) Template {
	row := Template{
		ID:           t.ID,
		Name:         t.Name,
		IDTANumber:   deref(t.IDTANumber),
		Status:       string(t.Status),
		RawStatus:    deref(t.RawStatus),
		Description:  deref(t.Description),
		VersionCount: len(t.Versions),
	}
	if latest, ok := t.Latest(); ok {
		row.LatestVersion = latest.Version
	}
	return row
}

// templateDiff describes changed template metadata, or returns "".
func templateDiff(old *Template, cur Template) string {
	var d diff
	d.field("name", old.Name, cur.Name)
	d.field("idta_number", old.IDTANumber, cur.IDTANumber)
	d.field("status", old.Status, cur.Status)
	d.field("raw_status", old.RawStatus, cur.RawStatus)
	d.field("description", old.Description, cur.Description)
	d.field("latest_version", old.LatestVersion, cur.LatestVersion)
	return d.String()
}

func versionDiff(old, cur versionRow) string {
	var d diff
	d.field("pdf", old.PDF, cur.PDF)
	d.field("github", old.GitHub, cur.GitHub)
	if old.IsLatest != cur.IsLatest {
		d.field("is_latest", fmt.Sprint(old.IsLatest), fmt.Sprint(cur.IsLatest))
	}
	return d.String()
}

type diff []string

func (d *diff) field(name, old, cur string) {
	if old != cur {
		*d = append(*d, fmt.Sprintf("%s: %q -> %q", name, old, cur))
	}
}

func (d diff) String() string {
	out := ""
	for i, s := range d {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}
