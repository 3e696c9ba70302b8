package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	insertSessionSQL = `
INSERT INTO sessions (id,
                      start_time,
                      device_id,
                      config)
VALUES (?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_id,
    config
FROM sessions
ORDER BY start_time`

	insertSnapshotSQL = `
INSERT INTO snapshots (session_id,
                       taken_at,
                       delta_t,
                       total,
                       elapsed,
                       cps,
                       temperature,
                       device_time,
                       counts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSnapshotsSQL = `
SELECT
    taken_at,
    delta_t,
    total,
    elapsed,
    cps,
    temperature,
    device_time,
    counts
FROM snapshots
WHERE
    session_id = ?
ORDER BY taken_at, id`
)
