// Package storage persists spectrum snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/herlein/gohama/pkg/spectrum"
)

// Session is one recording run
type Session struct {
	ID        string
	StartTime time.Time
	DeviceID  string
	Config    *string
}

// StoredSnapshot is a snapshot row with the logger's interval timestamp
type StoredSnapshot struct {
	spectrum.Snapshot
	DeltaT float64
}

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the database at dbPath. The
// database is opened and the schema created on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateSession records a new run and returns its identifier
func (s *SqliteStore) CreateSession(ctx context.Context, deviceID string, config any) (sessionID string, err error) {
	var configData sql.NullString
	if config != nil {
		var p []byte
		if p, err = json.Marshal(config); err != nil {
			err = fmt.Errorf("marshaling config: %w", err)
			return
		}
		configData = sql.NullString{String: string(p), Valid: true}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	id := uuid.NewString()
	if _, err = db.ExecContext(ctx, insertSessionSQL, id, time.Now().UnixNano(), deviceID, configData); err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	return id, nil
}

// Sessions lists all recorded runs, oldest first
func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var start int64
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &start, &sess.DeviceID, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sess.StartTime = time.Unix(0, start)
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	err = rows.Err()
	return
}

// StoreSnapshot appends one snapshot to a session
func (s *SqliteStore) StoreSnapshot(ctx context.Context, sessionID string, snap *spectrum.Snapshot, deltaT float64) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	// NaN temperature (no frame yet) is stored as NULL
	var temperature sql.NullFloat64
	if !math.IsNaN(snap.Temperature) {
		temperature = sql.NullFloat64{Float64: snap.Temperature, Valid: true}
	}

	_, err = db.ExecContext(ctx, insertSnapshotSQL,
		sessionID,
		snap.TakenAt.UnixNano(),
		deltaT,
		int64(snap.Total),
		snap.Elapsed.Seconds(),
		snap.CPS,
		temperature,
		snap.DeviceTime,
		encodeCounts(snap.Spectrum),
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// Snapshots returns the snapshots of a session in the order they were taken
func (s *SqliteStore) Snapshots(ctx context.Context, sessionID string) (snapshots []*StoredSnapshot, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSnapshotsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying snapshots: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			snap        StoredSnapshot
			takenAt     int64
			total       int64
			elapsed     float64
			temperature sql.NullFloat64
			counts      []byte
		)
		if err = rows.Scan(&takenAt, &snap.DeltaT, &total, &elapsed, &snap.CPS, &temperature, &snap.DeviceTime, &counts); err != nil {
			err = fmt.Errorf("scanning snapshot: %w", err)
			return
		}

		snap.TakenAt = time.Unix(0, takenAt)
		snap.Total = uint64(total)
		snap.Elapsed = time.Duration(elapsed * float64(time.Second))
		snap.Temperature = math.NaN()
		if temperature.Valid {
			snap.Temperature = temperature.Float64
		}
		if snap.Spectrum, err = decodeCounts(counts); err != nil {
			return
		}
		snapshots = append(snapshots, &snap)
	}
	err = rows.Err()
	return
}

// Close releases both connections
func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

// encodeCounts packs counts as little-endian uint32 values
func encodeCounts(counts []uint32) []byte {
	b := make([]byte, 4*len(counts))
	for i, c := range counts {
		binary.LittleEndian.PutUint32(b[4*i:], c)
	}
	return b
}

func decodeCounts(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt counts blob of %d bytes", len(b))
	}
	counts := make([]uint32, len(b)/4)
	for i := range counts {
		counts[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return counts, nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
