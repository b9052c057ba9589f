package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smtindex/smtindex/pkg/catalog"
)

// ListOptions controls selection when listing templates.
type ListOptions struct {
	Status string
	Query  string
}

// ListTemplates returns the stored templates matching opts, ordered by id.
func (d *DB) ListTemplates(ctx context.Context, opts ListOptions) ([]Template, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Status != "" {
		where += " AND lower(status) = lower(?)"
		args = append(args, opts.Status)
	}
	if opts.Query != "" {
		where += " AND (name LIKE ? OR id LIKE ? OR idta_number LIKE ? OR description LIKE ?)"
		like := fmt.Sprintf("%%%s%%", opts.Query)
		args = append(args, like, like, like, like)
	}

	q := "SELECT id, name, idta_number, status, raw_status, description, latest_version, version_count, first_seen_at, last_seen_at FROM templates " + where + " ORDER BY id"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		var (
			t                                      Template
			number, rawStatus, description, latest sql.NullString
			firstSeen, lastSeen                    string
		)
		if err := rows.Scan(&t.ID, &t.Name, &number, &t.Status, &rawStatus, &description, &latest, &t.VersionCount, &firstSeen, &lastSeen); err != nil {
			return nil, err
		}
		t.IDTANumber = nullString(number)
		t.RawStatus = nullString(rawStatus)
		t.Description = nullString(description)
		t.LatestVersion = nullString(latest)
		t.FirstSeenAt = parseTime(firstSeen)
		t.LastSeenAt = parseTime(lastSeen)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListRecentChanges returns the most recent N changes, newest first.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, build_id, template_id, name, version, change_type, detail FROM catalog_changes ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var (
			c          Change
			occurredAt string
			detail     sql.NullString
		)
		if err := rows.Scan(&occurredAt, &c.BuildID, &c.TemplateID, &c.Name, &c.Version, &c.ChangeType, &detail); err != nil {
			return nil, err
		}
		c.OccurredAt = parseTime(occurredAt)
		c.Detail = nullString(detail)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// ListBuilds returns the most recent builds, newest first.
func (d *DB) ListBuilds(ctx context.Context, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT id, generated_at, recorded_at, template_count, version_count, git_commit, tool_version FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	builds := []Build{}
	for rows.Next() {
		var (
			b                      Build
			generated, recorded    string
			gitCommit, toolVersion sql.NullString
		)
		if err := rows.Scan(&b.ID, &generated, &recorded, &b.TemplateCount, &b.VersionCount, &gitCommit, &toolVersion); err != nil {
			return nil, err
		}
		b.GeneratedAt = parseTime(generated)
		b.RecordedAt = parseTime(recorded)
		b.GitCommit = nullString(gitCommit)
		b.ToolVersion = nullString(toolVersion)
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// LatestCatalog returns the catalog stored by the most recent build.
func (d *DB) LatestCatalog(ctx context.Context) (*catalog.Catalog, error) {
	var payload string
	err := d.sql.QueryRowContext(ctx, `SELECT catalog_json FROM builds ORDER BY id DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return catalog.Decode([]byte(payload))
}

type StatusStats struct {
	Status        string
	TemplateCount int
	VersionCount  int
}

// GetStats returns template and version counts per status.
func (d *DB) GetStats(ctx context.Context) ([]StatusStats, error) {
	query := `
		SELECT
			status,
			COUNT(*),
			COALESCE(SUM(version_count), 0)
		FROM
			templates
		GROUP BY
			status
		ORDER BY
			status;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []StatusStats
	for rows.Next() {
		var s StatusStats
		if err := rows.Scan(&s.Status, &s.TemplateCount, &s.VersionCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
