package store

// Schema is the complete measurements schema. The timestamp primary key
// doubles as the idempotence guard: a retried row with an
// already-committed timestamp is ignored, so an interrupted batch can be
// replayed safely.
const Schema = `
CREATE TABLE IF NOT EXISTS measurements (
    timestamp TEXT PRIMARY KEY,
    cx        REAL,
    cy        REAL,
    temp1     REAL,
    temp2     REAL,
    temp3     REAL,
    temp4     REAL
);
`
