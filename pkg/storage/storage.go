package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencountrieslist/opencountries/pkg/travel"
	_ "modernc.org/sqlite"
)

// Kinds stored in daily_counts.
const (
	kindClassification     = "classification"
	kindQuarantineRequired = "quarantine_required"
)

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS countries (
  name                TEXT PRIMARY KEY,
  abbreviation        TEXT NOT NULL,
  url                 TEXT NOT NULL,
  classification      INTEGER NOT NULL CHECK (classification BETWEEN 0 AND 5),
  quarantine_required INTEGER NOT NULL CHECK (quarantine_required BETWEEN 0 AND 2),
  test_required       INTEGER NOT NULL CHECK (test_required BETWEEN 0 AND 2),
  preformatted        TEXT,
  last_changed        INTEGER NOT NULL DEFAULT 0,
  run_id              TEXT NOT NULL DEFAULT '',
  first_seen_at       INTEGER NOT NULL,
  last_seen_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_countries_abbreviation ON countries(abbreviation);
CREATE TABLE IF NOT EXISTS country_changes (
  id           INTEGER PRIMARY KEY,
  occurred_at  INTEGER NOT NULL,
  run_id       TEXT NOT NULL DEFAULT '',
  abbreviation TEXT NOT NULL,
  name         TEXT NOT NULL,
  field        TEXT NOT NULL,
  old_value    INTEGER NOT NULL DEFAULT 0,
  new_value    INTEGER NOT NULL DEFAULT 0,
  change_type  TEXT NOT NULL CHECK (change_type IN ('added','updated','removed'))
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON country_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_changes_country ON country_changes(abbreviation, occurred_at);
CREATE TABLE IF NOT EXISTS daily_counts (
  day   TEXT NOT NULL,
  kind  TEXT NOT NULL CHECK (kind IN ('classification','quarantine_required')),
  value INTEGER NOT NULL,
  count INTEGER NOT NULL,
  PRIMARY KEY (day, kind, value)
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

type storedPolicy struct {
	Abbreviation   string
	Classification int
	Quarantine     int
	Test           int
}

// UpsertCountries stores the records of one poll run and returns what changed.
// Countries are keyed by name: several countries can share one embassy and
// therefore one abbreviation. Stored countries whose name is neither in
// records nor in keep are removed. keep lets callers protect countries that
// were listed but could not be fetched. Changes are returned, not logged; see
// LogChanges.
func (d *DB) UpsertCountries(ctx context.Context, runID string, records []travel.CountryRecord, keep ...string) ([]Change, error) {
	now := d.now().UTC()

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, "SELECT name, abbreviation, classification, quarantine_required, test_required FROM countries")
	if err != nil {
		return nil, err
	}
	existingMap := make(map[string]storedPolicy)
	for rows.Next() {
		var name string
		var p storedPolicy
		if err = rows.Scan(&name, &p.Abbreviation, &p.Classification, &p.Quarantine, &p.Test); err != nil {
			rows.Close()
			return nil, err
		}
		existingMap[name] = p
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	if len(records) == 0 && len(keep) == 0 && len(existingMap) > 10 {
		err = fmt.Errorf("%w: poll returned 0 countries, database has %d", ErrAbortingWipe, len(existingMap))
		return nil, err
	}

	seen := make(map[string]bool, len(records)+len(keep))
	for _, k := range keep {
		seen[k] = true
	}
	upserted := make(map[string]bool, len(records))

	var changes []Change
	for _, r := range records {
		if err = r.Validate(); err != nil {
			return nil, err
		}
		var notes []byte
		if notes, err = json.Marshal(r.Preformatted); err != nil {
			return nil, err
		}

		if upserted[r.Name] {
			err = fmt.Errorf("country %q appears twice in one run", r.Name)
			return nil, err
		}
		upserted[r.Name] = true
		seen[r.Name] = true
		ex, existed := existingMap[r.Name]
		if !existed {
			_, err = tx.ExecContext(ctx, `INSERT INTO countries(abbreviation, name, url, classification, quarantine_required, test_required, preformatted, last_changed, run_id, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
				r.Abbreviation, r.Name, r.URL, int(r.Classification), int(r.QuarantineRequired), int(r.TestRequired), string(notes), r.LastChanged, runID, now.Unix(), now.Unix())
			if err != nil {
				return nil, err
			}
			changes = append(changes, Change{OccurredAt: now, RunID: runID, Abbreviation: r.Abbreviation, Name: r.Name, Field: FieldCountry, NewValue: int(r.Classification), ChangeType: ChangeAdded})
			existingMap[r.Name] = storedPolicy{Abbreviation: r.Abbreviation, Classification: int(r.Classification), Quarantine: int(r.QuarantineRequired), Test: int(r.TestRequired)}
			continue
		}

		fieldChanges := diffPolicy(ex, r)
		for i := range fieldChanges {
			fieldChanges[i].OccurredAt = now
			fieldChanges[i].RunID = runID
		}
		if len(fieldChanges) > 0 {
			_, err = tx.ExecContext(ctx, `UPDATE countries SET abbreviation = ?, url = ?, classification = ?, quarantine_required = ?, test_required = ?, preformatted = ?, last_changed = ?, run_id = ?, last_seen_at = ? WHERE name = ?`,
				r.Abbreviation, r.URL, int(r.Classification), int(r.QuarantineRequired), int(r.TestRequired), string(notes), now.Unix(), runID, now.Unix(), r.Name)
			changes = append(changes, fieldChanges...)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE countries SET abbreviation = ?, url = ?, preformatted = ?, run_id = ?, last_seen_at = ? WHERE name = ?`,
				r.Abbreviation, r.URL, string(notes), runID, now.Unix(), r.Name)
		}
		if err != nil {
			return nil, err
		}
	}

	// Sweep: delete countries that disappeared from the directory.
	for name, ex := range existingMap {
		if seen[name] {
			continue
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM countries WHERE name = ?`, name); err != nil {
			return nil, err
		}
		changes = append(changes, Change{OccurredAt: now, RunID: runID, Abbreviation: ex.Abbreviation, Name: name, Field: FieldCountry, OldValue: ex.Classification, ChangeType: ChangeRemoved})
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

func diffPolicy(ex storedPolicy, r travel.CountryRecord) []Change {
	var out []Change
	add := func(field string, oldV, newV int) {
		if oldV != newV {
			out = append(out, Change{Abbreviation: r.Abbreviation, Name: r.Name, Field: field, OldValue: oldV, NewValue: newV, ChangeType: ChangeUpdated})
		}
	}
	add(FieldClassification, ex.Classification, int(r.Classification))
	add(FieldQuarantineRequired, ex.Quarantine, int(r.QuarantineRequired))
	add(FieldTestRequired, ex.Test, int(r.TestRequired))
	return out
}

// LogChanges persists change events.
func (d *DB) LogChanges(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	for _, c := range changes {
		occurred := c.OccurredAt
		if occurred.IsZero() {
			occurred = d.now()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO country_changes(occurred_at, run_id, abbreviation, name, field, old_value, new_value, change_type) VALUES(?,?,?,?,?,?,?,?)`,
			occurred.Unix(), c.RunID, c.Abbreviation, c.Name, c.Field, c.OldValue, c.NewValue, c.ChangeType); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListRecentChanges returns the most recent N changes across all countries.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, run_id, abbreviation, name, field, old_value, new_value, change_type FROM country_changes ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAt int64
		if err := rows.Scan(&occurredAt, &c.RunID, &c.Abbreviation, &c.Name, &c.Field, &c.OldValue, &c.NewValue, &c.ChangeType); err != nil {
			return nil, err
		}
		c.OccurredAt = time.Unix(occurredAt, 0).UTC()
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// ListCountries returns the stored records ordered by abbreviation, then name.
func (d *DB) ListCountries(ctx context.Context) ([]travel.CountryRecord, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT abbreviation, name, url, classification, quarantine_required, test_required, preformatted, last_changed FROM countries ORDER BY abbreviation, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []travel.CountryRecord
	for rows.Next() {
		var r travel.CountryRecord
		var class, quarantine, test int
		var notes sql.NullString
		if err := rows.Scan(&r.Abbreviation, &r.Name, &r.URL, &class, &quarantine, &test, &notes, &r.LastChanged); err != nil {
			return nil, err
		}
		r.Classification = travel.Classification(class)
		r.QuarantineRequired = travel.Requirement(quarantine)
		r.TestRequired = travel.Requirement(test)
		if notes.Valid && notes.String != "" {
			if err := json.Unmarshal([]byte(notes.String), &r.Preformatted); err != nil {
				return nil, fmt.Errorf("decoding notes for %s: %w", r.Abbreviation, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountryCount returns how many countries are stored.
func (d *DB) CountryCount(ctx context.Context) (int, error) {
	var n int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM countries").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// RecordDailyCounts replaces the counts stored for day.
func (d *DB) RecordDailyCounts(ctx context.Context, day string, counts travel.DayCounts) error {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("invalid day %q: %w", day, err)
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM daily_counts WHERE day = ?", day); err != nil {
		return err
	}
	for v, n := range counts.Classification {
		if _, err = tx.ExecContext(ctx, "INSERT INTO daily_counts(day, kind, value, count) VALUES(?,?,?,?)", day, kindClassification, int(v), n); err != nil {
			return err
		}
	}
	for v, n := range counts.QuarantineRequired {
		if _, err = tx.ExecContext(ctx, "INSERT INTO daily_counts(day, kind, value, count) VALUES(?,?,?,?)", day, kindQuarantineRequired, int(v), n); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// ListDailyCounts returns every stored day keyed by YYYY-MM-DD.
func (d *DB) ListDailyCounts(ctx context.Context) (map[string]travel.DayCounts, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT day, kind, value, count FROM daily_counts ORDER BY day")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]travel.DayCounts)
	for rows.Next() {
		var day, kind string
		var value, count int
		if err := rows.Scan(&day, &kind, &value, &count); err != nil {
			return nil, err
		}
		dc, ok := out[day]
		if !ok {
			dc = travel.DayCounts{
				Classification:     make(map[travel.Classification]int),
				QuarantineRequired: make(map[travel.Requirement]int),
			}
		}
		switch kind {
		case kindClassification:
			dc.Classification[travel.Classification(value)] = count
		case kindQuarantineRequired:
			dc.QuarantineRequired[travel.Requirement(value)] = count
		}
		out[day] = dc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastUpdated returns when a poll last stored country data, in unix
// seconds, or 0 for an empty database.
func (d *DB) LastUpdated(ctx context.Context) (int64, error) {
	var ts int64
	if err := d.sql.QueryRowContext(ctx, "SELECT COALESCE(MAX(last_seen_at), 0) FROM countries").Scan(&ts); err != nil {
		return 0, err
	}
	return ts, nil
}

// Snapshot assembles the published feed from the stored state. Its time is
// the last poll that stored data, not the time of the call.
func (d *DB) Snapshot(ctx context.Context) (travel.Feed, error) {
	countries, err := d.ListCountries(ctx)
	if err != nil {
		return travel.Feed{}, err
	}
	changes, err := d.ListDailyCounts(ctx)
	if err != nil {
		return travel.Feed{}, err
	}
	updated, err := d.LastUpdated(ctx)
	if err != nil {
		return travel.Feed{}, err
	}
	if countries == nil {
		countries = []travel.CountryRecord{}
	}
	return travel.Feed{Time: updated, Countries: countries, Changes: changes}, nil
}

func (d *DB) GetStats(ctx context.Context) ([]ClassificationStats, error) {
	query := `
		SELECT
			classification,
			COUNT(*)
		FROM
			countries
		GROUP BY
			classification
		ORDER BY
			classification;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ClassificationStats
	for rows.Next() {
		var s ClassificationStats
		var class int
		if err := rows.Scan(&class, &s.Count); err != nil {
			return nil, err
		}
		s.Classification = travel.Classification(class)
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
