package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mscrnt/thermalctl/pkg/calibration"
)

// SaveProfile inserts or replaces a calibration profile and all of its samples
func (db *DB) SaveProfile(p *calibration.Profile) error {
	if p == nil || p.ProductID == "" {
		return fmt.Errorf("calibration profile needs a product id")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var calibratedAt *time.Time
	if !p.CalibratedAt.IsZero() {
		t := p.CalibratedAt
		calibratedAt = &t
	}

	_, err = tx.Exec(
		`INSERT INTO calibration_profiles (product_id, model_name, max_level, min_spin_level,
		 fan_count, fan0_max_rpm, fan1_max_rpm, supports_direct_rpm, calibrated_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(product_id) DO UPDATE SET
		 model_name = excluded.model_name, max_level = excluded.max_level,
		 min_spin_level = excluded.min_spin_level, fan_count = excluded.fan_count,
		 fan0_max_rpm = excluded.fan0_max_rpm, fan1_max_rpm = excluded.fan1_max_rpm,
		 supports_direct_rpm = excluded.supports_direct_rpm,
		 calibrated_at = excluded.calibrated_at, updated_at = excluded.updated_at`,
		p.ProductID, p.ModelName, p.MaxLevel, p.MinSpinLevel, p.FanCount,
		p.Fan0MaxRPM, p.Fan1MaxRPM, p.SupportsDirectRPM, calibratedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM calibration_samples WHERE product_id = ?`, p.ProductID); err != nil {
		return fmt.Errorf("failed to clear samples: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO calibration_samples (product_id, fan, level, rpm) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for fan, curve := range []calibration.Curve{p.Fan0Curve, p.Fan1Curve} {
		for _, s := range curve {
			if _, err := stmt.Exec(p.ProductID, fan, s.Level, s.RPM); err != nil {
				return fmt.Errorf("failed to insert sample fan%d level %d: %w", fan, s.Level, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetProfile loads a calibration profile with its samples
func (db *DB) GetProfile(productID string) (*calibration.Profile, error) {
	p := &calibration.Profile{}
	var calibratedAt sql.NullTime
	err := db.conn.QueryRow(
		`SELECT product_id, model_name, max_level, min_spin_level, fan_count,
		 fan0_max_rpm, fan1_max_rpm, supports_direct_rpm, calibrated_at
		 FROM calibration_profiles WHERE product_id = ?`,
		productID,
	).Scan(
		&p.ProductID, &p.ModelName, &p.MaxLevel, &p.MinSpinLevel, &p.FanCount,
		&p.Fan0MaxRPM, &p.Fan1MaxRPM, &p.SupportsDirectRPM, &calibratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calibration profile %q: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if calibratedAt.Valid {
		p.CalibratedAt = calibratedAt.Time
	}

	rows, err := db.conn.Query(
		`SELECT fan, level, rpm FROM calibration_samples WHERE product_id = ? ORDER BY fan, level`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var fan, level, rpm int
		if err := rows.Scan(&fan, &level, &rpm); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if fan == 1 {
			p.Fan1Curve.Set(level, rpm)
		} else {
			p.Fan0Curve.Set(level, rpm)
		}
	}
	return p, rows.Err()
}

// ProfileInfo summarizes a stored profile
type ProfileInfo struct {
	ProductID    string     `json:"product_id"`
	ModelName    string     `json:"model_name"`
	Samples      int        `json:"samples"`
	CalibratedAt *time.Time `json:"calibrated_at"`
}

// ListProfiles returns every stored profile ordered by product id
func (db *DB) ListProfiles() ([]ProfileInfo, error) {
	rows, err := db.conn.Query(
		`SELECT p.product_id, p.model_name, p.calibrated_at,
		 (SELECT COUNT(*) FROM calibration_samples s WHERE s.product_id = p.product_id)
		 FROM calibration_profiles p ORDER BY p.product_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ProfileInfo
	for rows.Next() {
		var info ProfileInfo
		var calibratedAt sql.NullTime
		if err := rows.Scan(&info.ProductID, &info.ModelName, &calibratedAt, &info.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		if calibratedAt.Valid {
			t := calibratedAt.Time
			info.CalibratedAt = &t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteProfile removes a profile and its samples
func (db *DB) DeleteProfile(productID string) error {
	res, err := db.conn.Exec(`DELETE FROM calibration_profiles WHERE product_id = ?`, productID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("calibration profile %q: %w", productID, ErrNotFound)
	}
	return nil
}
