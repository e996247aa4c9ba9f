// Package presets stores named effect chains with their parameter settings.
package presets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stevecastle/fxlab/catalog"
)

var (
	ErrNotFound = errors.New("preset not found")
	ErrInvalid  = errors.New("invalid preset")
)

// Preset is a saved chain and its parameters.
type Preset struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Chain     []string         `json:"chain"`
	Params    catalog.Settings `json:"params"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Store keeps presets in a sqlite table.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log *logrus.Entry
}

// Open creates the presets table if needed.
func Open(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS presets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		chain TEXT NOT NULL, -- JSON array of effect ids
		params TEXT NOT NULL, -- JSON object keyed by effect id
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("create presets table: %w", err)
	}
	return &Store{db: db, now: time.Now, log: logrus.WithField("component", "presets")}, nil
}

// validate trims the name, drops ids the catalog doesn't know and keeps only
// params for effects still in the chain.
func validate(p *Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if err := catalog.CheckChain(p.Chain); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	p.Chain = append(make([]string, 0, len(p.Chain)), p.Chain...)
	params := make(catalog.Settings, len(p.Params))
	for _, id := range p.Chain {
		if v, ok := p.Params[id]; ok {
			params[id] = v
		}
	}
	p.Params = params
	return nil
}

// Save inserts p, or replaces the preset with the same id. A missing id is
// generated. The stored preset is returned.
func (s *Store) Save(ctx context.Context, p Preset) (Preset, error) {
	if err := validate(&p); err != nil {
		return Preset{}, err
	}
	now := s.now()
	if p.ID == "" {
		p.ID = uuid.New().String()
		p.CreatedAt = now
	} else if existing, err := s.Load(ctx, p.ID); err == nil {
		p.CreatedAt = existing.CreatedAt
	} else if errors.Is(err, ErrNotFound) {
		p.CreatedAt = now
	} else {
		return Preset{}, err
	}
	p.UpdatedAt = now

	chainJSON, err := json.Marshal(p.Chain)
	if err != nil {
		return Preset{}, err
	}
	paramsJSON, err := json.Marshal(p.Params)
	if err != nil {
		return Preset{}, err
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO presets (id, name, chain, params, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(chainJSON), string(paramsJSON), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Preset{}, fmt.Errorf("save preset %s: %w", p.ID, err)
	}
	s.log.WithFields(logrus.Fields{"preset": p.ID, "name": p.Name}).Debug("preset saved")
	return p, nil
}

const selectPreset = `SELECT id, name, chain, params, created_at, updated_at FROM presets`

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(row scanner) (Preset, error) {
	var (
		p                     Preset
		chainJSON, paramsJSON string
	)
	if err := row.Scan(&p.ID, &p.Name, &chainJSON, &paramsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Preset{}, err
	}
	if err := json.Unmarshal([]byte(chainJSON), &p.Chain); err != nil {
		return Preset{}, fmt.Errorf("preset %s chain: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &p.Params); err != nil {
		return Preset{}, fmt.Errorf("preset %s params: %w", p.ID, err)
	}
	return p, nil
}

// Load returns the preset with the given id.
func (s *Store) Load(ctx context.Context, id string) (Preset, error) {
	p, err := scanPreset(s.db.QueryRowContext(ctx, selectPreset+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, err
}

// List returns every preset ordered by name.
func (s *Store) List(ctx context.Context) ([]Preset, error) {
	rows, err := s.db.QueryContext(ctx, selectPreset+` ORDER BY name COLLATE NOCASE, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			s.log.WithError(err).Warn("skipping unreadable preset")
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a preset.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
