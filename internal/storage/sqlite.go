//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"abcsmc/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	observed, err := EncodeSummaryStatistics(run.Observed)
	if err != nil {
		return err
	}
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, schema_version, codec_version, created_at, observed, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.SchemaVersion, run.CodecVersion, run.CreatedAt.UTC().Format(time.RFC3339Nano), observed, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Run{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, false, nil
		}
		return model.Run{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.Run{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, reason model.StopReason, at time.Time) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var payload []byte
	err = tx.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return fmt.Errorf("decode run %s: %w", id, err)
	}
	completed := at.UTC()
	run.StopReason = reason
	run.CompletedAt = &completed

	updated, err := EncodeRun(run)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET payload = ? WHERE id = ?`, updated, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendPopulation(ctx context.Context, population model.Population) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if _, ok, err := s.GetRun(ctx, population.RunID); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}

	probabilities, err := EncodeProbabilities(population.ModelProbabilities)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM populations WHERE run_id = ? AND t = ?`,
		population.RunID, population.T).Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		return ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO populations (run_id, t, schema_version, codec_version, epsilon, total_draws, created_at, probabilities)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, population.RunID, population.T, population.SchemaVersion, population.CodecVersion,
		population.Epsilon, population.TotalDraws,
		population.CreatedAt.UTC().Format(time.RFC3339Nano), probabilities)
	if err != nil {
		return err
	}

	for idx, particle := range population.Particles {
		parameters, err := EncodeSummaryStatistics(model.SummaryStatistics(particle.Parameters))
		if err != nil {
			return err
		}
		sumStats, err := EncodeSummaryStatistics(particle.SumStats)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO particles (run_id, t, idx, model, weight, distance, parameters, sum_stats)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, population.RunID, population.T, idx, particle.Model, particle.Weight, particle.Distance,
			parameters, sumStats)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetPopulation(ctx context.Context, runID string, t int) (model.Population, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Population{}, false, err
	}

	var (
		population    model.Population
		createdAt     string
		probabilities []byte
	)
	err = db.QueryRowContext(ctx, `
		SELECT schema_version, codec_version, epsilon, total_draws, created_at, probabilities
		FROM populations WHERE run_id = ? AND t = ?
	`, runID, t).Scan(&population.SchemaVersion, &population.CodecVersion, &population.Epsilon,
		&population.TotalDraws, &createdAt, &probabilities)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Population{}, false, nil
		}
		return model.Population{}, false, err
	}
	if err := checkVersion(population.VersionedRecord); err != nil {
		return model.Population{}, false, err
	}

	population.RunID = runID
	population.T = t
	if population.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return model.Population{}, false, fmt.Errorf("parse population timestamp: %w", err)
	}
	if population.ModelProbabilities, err = DecodeProbabilities(probabilities); err != nil {
		return model.Population{}, false, fmt.Errorf("decode probabilities: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT model, weight, distance, parameters, sum_stats
		FROM particles WHERE run_id = ? AND t = ? ORDER BY idx
	`, runID, t)
	if err != nil {
		return model.Population{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			particle   model.Particle
			parameters []byte
			sumStats   []byte
		)
		if err := rows.Scan(&particle.Model, &particle.Weight, &particle.Distance, &parameters, &sumStats); err != nil {
			return model.Population{}, false, err
		}
		decodedParams, err := DecodeSummaryStatistics(parameters)
		if err != nil {
			return model.Population{}, false, fmt.Errorf("decode particle parameters: %w", err)
		}
		particle.Parameters = model.ParameterSample(decodedParams)
		if particle.SumStats, err = DecodeSummaryStatistics(sumStats); err != nil {
			return model.Population{}, false, fmt.Errorf("decode particle sum stats: %w", err)
		}
		population.Particles = append(population.Particles, particle)
	}
	if err := rows.Err(); err != nil {
		return model.Population{}, false, err
	}
	return population, true, nil
}

func (s *SQLiteStore) MaxT(ctx context.Context, runID string) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return -1, err
	}

	if _, ok, err := s.GetRun(ctx, runID); err != nil {
		return -1, err
	} else if !ok {
		return -1, ErrNotFound
	}

	var maxT sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT MAX(t) FROM populations WHERE run_id = ?`, runID).Scan(&maxT)
	if err != nil {
		return -1, err
	}
	if !maxT.Valid {
		return -1, nil
	}
	return int(maxT.Int64), nil
}

func (s *SQLiteStore) ModelProbabilities(ctx context.Context, runID string) ([]model.ModelProbabilityRow, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	if _, ok, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}

	rows, err := db.QueryContext(ctx, `
		SELECT t, probabilities FROM populations WHERE run_id = ? ORDER BY t
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ModelProbabilityRow
	for rows.Next() {
		var (
			row     model.ModelProbabilityRow
			payload []byte
		)
		if err := rows.Scan(&row.T, &payload); err != nil {
			return nil, err
		}
		if row.Probabilities, err = DecodeProbabilities(payload); err != nil {
			return nil, fmt.Errorf("decode probabilities at t=%d: %w", row.T, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Distances(ctx context.Context, runID string, t int) ([]float64, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	if _, ok, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}

	rows, err := db.QueryContext(ctx, `
		SELECT distance FROM particles WHERE run_id = ? AND t = ? ORDER BY idx
	`, runID, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			observed BLOB NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS populations (
			run_id TEXT NOT NULL,
			t INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			epsilon REAL NOT NULL,
			total_draws INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			probabilities BLOB NOT NULL,
			PRIMARY KEY (run_id, t)
		);
		CREATE TABLE IF NOT EXISTS particles (
			run_id TEXT NOT NULL,
			t INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			model INTEGER NOT NULL,
			weight REAL NOT NULL,
			distance REAL NOT NULL,
			parameters BLOB NOT NULL,
			sum_stats BLOB NOT NULL,
			PRIMARY KEY (run_id, t, idx)
		);
	`)
	return err
}
