package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handchord/internal/config"
	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

// DefaultPresetName is the name of the built-in D major preset.
const DefaultPresetName = "d-major"

// Binding binds one slot to a chord.
type Binding struct {
	Slot  string `json:"slot"`
	Chord string `json:"chord,omitempty"`
	Notes []int  `json:"notes"`
}

// Preset is a complete instrument setup: chord table, instrument cycle and
// play options.
type Preset struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	Sustain         config.Duration     `json:"sustain"`
	MirroredHands   bool                `json:"mirroredHands"`
	VelocityShaping bool                `json:"velocityShaping"`
	Bindings        []Binding           `json:"bindings"`
	Instruments     []engine.Instrument `json:"instruments"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// NewPreset builds a preset from a chord table and instrument cycle.
func NewPreset(name string, table *slot.Table, instruments []engine.Instrument) *Preset {
	p := &Preset{
		Name:        name,
		Sustain:     config.Duration(engine.DefaultSustain),
		Instruments: append([]engine.Instrument(nil), instruments...),
	}
	for s, c := range table.Bindings() {
		p.Bindings = append(p.Bindings, Binding{Slot: s.String(), Chord: c.Name, Notes: c.Notes})
	}
	p.sortBindings()
	return p
}

// DefaultPreset returns the built-in D major preset.
func DefaultPreset() *Preset {
	p := NewPreset(DefaultPresetName, slot.DefaultTable(), engine.DefaultInstruments())
	p.Description = "Diatonic triads of D major, left hand an octave below the right"
	return p
}

// Table converts the bindings into a chord table.
func (p *Preset) Table() (*slot.Table, error) {
	chords := make(map[slot.Slot]slot.Chord, len(p.Bindings))
	for _, b := range p.Bindings {
		s, err := slot.Parse(b.Slot)
		if err != nil {
			return nil, err
		}
		if _, dup := chords[s]; dup {
			return nil, fmt.Errorf("slot %s bound twice", s)
		}
		chords[s] = slot.Chord{Name: b.Chord, Notes: b.Notes}
	}
	return slot.NewTable(chords)
}

// Validate checks the preset can drive an engine.
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("preset name is required")
	}
	if p.Sustain < 0 {
		return fmt.Errorf("sustain must not be negative, got %v", time.Duration(p.Sustain))
	}
	if _, err := p.Table(); err != nil {
		return err
	}
	cfg := engine.Config{Instruments: p.Instruments}
	return cfg.Validate()
}

// EngineConfig returns the engine configuration described by the preset.
func (p *Preset) EngineConfig() (engine.Config, error) {
	table, err := p.Table()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Table:           table,
		Sustain:         time.Duration(p.Sustain),
		Instruments:     p.Instruments,
		VelocityShaping: p.VelocityShaping,
	}, nil
}

// Mapping returns the detector label mapping of the preset.
func (p *Preset) Mapping() slot.Mapping {
	return slot.Mapping{Mirrored: p.MirroredHands}
}

func (p *Preset) sortBindings() {
	rank := func(name string) int {
		if s, err := slot.Parse(name); err == nil {
			return s.Index()
		}
		return slot.Count
	}
	sort.SliceStable(p.Bindings, func(i, j int) bool {
		return rank(p.Bindings[i].Slot) < rank(p.Bindings[j].Slot)
	})
}

// PresetRepository provides CRUD operations for presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

// Create validates and inserts p. An empty ID is filled with a new UUID.
func (r *PresetRepository) Create(p *Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := r.GetByName(p.Name); err == nil {
		return fmt.Errorf("preset %q: %w", p.Name, ErrExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.sortBindings()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO presets (id, name, description, sustain_ms, mirrored_hands, velocity_shaping, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, time.Duration(p.Sustain).Milliseconds(), p.MirroredHands, p.VelocityShaping, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if err := insertChildren(tx, p); err != nil {
		return err
	}

	return tx.Commit()
}

func insertChildren(tx *sql.Tx, p *Preset) error {
	for _, b := range p.Bindings {
		notes, err := json.Marshal(b.Notes)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO preset_chords (preset_id, slot, name, notes) VALUES (?, ?, ?, ?)`,
			p.ID, b.Slot, b.Chord, string(notes),
		); err != nil {
			return fmt.Errorf("insert chord %s: %w", b.Slot, err)
		}
	}

	for i, inst := range p.Instruments {
		if _, err := tx.Exec(
			`INSERT INTO preset_instruments (preset_id, position, program, name) VALUES (?, ?, ?, ?)`,
			p.ID, i, inst.Program, inst.Name,
		); err != nil {
			return fmt.Errorf("insert instrument %d: %w", i, err)
		}
	}
	return nil
}

const presetColumns = `id, name, description, sustain_ms, mirrored_hands, velocity_shaping, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (*Preset, error) {
	p := &Preset{}
	var sustainMs int64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &sustainMs, &p.MirroredHands, &p.VelocityShaping, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Sustain = config.Duration(time.Duration(sustainMs) * time.Millisecond)
	return p, nil
}

// GetByID retrieves a preset with its chords and instruments.
func (r *PresetRepository) GetByID(id string) (*Preset, error) {
	return r.get(`SELECT `+presetColumns+` FROM presets WHERE id = ?`, id)
}

// GetByName retrieves a preset by its name.
func (r *PresetRepository) GetByName(name string) (*Preset, error) {
	return r.get(`SELECT `+presetColumns+` FROM presets WHERE name = ?`, name)
}

func (r *PresetRepository) get(query string, arg string) (*Preset, error) {
	p, err := scanPreset(r.db.QueryRow(query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadChildren(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PresetRepository) loadChildren(p *Preset) error {
	rows, err := r.db.Query(`SELECT slot, name, notes FROM preset_chords WHERE preset_id = ?`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.Bindings = nil
	for rows.Next() {
		var b Binding
		var notes string
		if err := rows.Scan(&b.Slot, &b.Chord, &notes); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(notes), &b.Notes); err != nil {
			return fmt.Errorf("decode notes of %s: %w", b.Slot, err)
		}
		p.Bindings = append(p.Bindings, b)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	p.sortBindings()

	irows, err := r.db.Query(
		`SELECT program, name FROM preset_instruments WHERE preset_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return err
	}
	defer irows.Close()

	p.Instruments = nil
	for irows.Next() {
		var inst engine.Instrument
		if err := irows.Scan(&inst.Program, &inst.Name); err != nil {
			return err
		}
		p.Instruments = append(p.Instruments, inst)
	}
	return irows.Err()
}

// List retrieves all presets ordered by name.
func (r *PresetRepository) List() ([]*Preset, error) {
	rows, err := r.db.Query(`SELECT ` + presetColumns + ` FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}

	var presets []*Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, p := range presets {
		if err := r.loadChildren(p); err != nil {
			return nil, err
		}
	}
	return presets, nil
}

// Update replaces an existing preset, including its chords and instruments.
func (r *PresetRepository) Update(p *Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	p.sortBindings()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	oldName, err := presetName(tx, p.ID)
	if err != nil {
		return err
	}

	result, err := tx.Exec(
		`UPDATE presets SET name = ?, description = ?, sustain_ms = ?, mirrored_hands = ?, velocity_shaping = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Description, time.Duration(p.Sustain).Milliseconds(), p.MirroredHands, p.VelocityShaping, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM preset_chords WHERE preset_id = ?`, p.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM preset_instruments WHERE preset_id = ?`, p.ID); err != nil {
		return err
	}
	if err := insertChildren(tx, p); err != nil {
		return err
	}

	// A renamed active preset stays active.
	if oldName != p.Name {
		if _, err := tx.Exec(
			`UPDATE settings SET value = ? WHERE key = ? AND value = ?`,
			p.Name, SettingActivePreset, oldName,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a preset by its ID.
func (r *PresetRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	name, err := presetName(tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM presets WHERE id = ?`, id); err != nil {
		return err
	}
	// Deleting the active preset deactivates it.
	if _, err := tx.Exec(
		`DELETE FROM settings WHERE key = ? AND value = ?`,
		SettingActivePreset, name,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// presetName returns the name of the preset with id or ErrNotFound.
func presetName(tx *sql.Tx, id string) (string, error) {
	var name string
	err := tx.QueryRow(`SELECT name FROM presets WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}

// EnsureDefault creates the built-in preset if it is missing and returns it.
func (r *PresetRepository) EnsureDefault() (*Preset, error) {
	p, err := r.GetByName(DefaultPresetName)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p = DefaultPreset()
	if err := r.Create(p); err != nil {
		return nil, fmt.Errorf("failed to seed default preset: %w", err)
	}
	return p, nil
}
