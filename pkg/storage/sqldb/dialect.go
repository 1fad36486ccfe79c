package sqldb

// Dialect captures the differences between the supported SQL databases.
type Dialect struct {
	// Name is the database/sql driver name. sqlx derives placeholder
	// rebinding from it.
	Name string

	// Pragmas run once after the connection is opened.
	Pragmas []string

	// Column types for the schema.
	TimestampType string
	FloatType     string
}

var (
	// SQLite is the dialect of mattn/go-sqlite3.
	SQLite = Dialect{
		Name: "sqlite3",
		Pragmas: []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		},
		TimestampType: "TIMESTAMP",
		FloatType:     "REAL",
	}

	// Postgres is the dialect of jackc/pgx via its database/sql adapter.
	Postgres = Dialect{
		Name:          "pgx",
		TimestampType: "TIMESTAMPTZ",
		FloatType:     "DOUBLE PRECISION",
	}
)
