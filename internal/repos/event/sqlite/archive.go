// Package sqlite provides the event archive that persists event snapshots inside a SQLite database.
// Each event is stored as one JSON document; the in-memory store remains the source of truth and
// only hands completed mutations to the archive
package sqlite

import (
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/models"
	"github.com/derWhity/gustavo/internal/repos"
)

// Archive is an event archive that stores its data inside a SQLite database
type Archive struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new event archive instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *Archive {
	return &Archive{
		db:     db,
		logger: logger,
	}
}

// Save writes the given snapshot to the archive, replacing any previous one
func (a *Archive) Save(ev *models.Event) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "Save: Failed to serialize event snapshot")
	}
	query := `REPLACE INTO Events(id, name, state, document, updatedAt) VALUES(?, ?, ?, ?, datetime('now'))`
	if _, err := a.db.Exec(query, ev.ID, ev.Name, string(ev.State), string(doc)); err != nil {
		return errors.Wrap(err, "Save: Failed to write event snapshot")
	}
	return nil
}

// Delete removes the archived snapshot of the given event
func (a *Archive) Delete(id string) error {
	res, err := a.db.Exec(`DELETE FROM Events WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "Delete: Failed to delete event snapshot")
	}
	if num, err := res.RowsAffected(); err == nil && num == 0 {
		return repos.ErrEntityNotExisting
	}
	return nil
}

// LoadAll returns every archived event snapshot
func (a *Archive) LoadAll() ([]*models.Event, error) {
	rows, err := a.db.Query(`SELECT id, document FROM Events`)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "LoadAll: Failed to query event snapshots")
	}
	defer rows.Close()
	var ret []*models.Event
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, errors.Wrap(err, "LoadAll: Failed to scan event snapshot row")
		}
		var ev models.Event
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			// A broken document must not keep the whole service from starting
			a.logger.WithError(err).WithField(log.FldEvent, id).Error("Skipping unreadable event snapshot")
			continue
		}
		ret = append(ret, &ev)
	}
	return ret, rows.Err()
}
