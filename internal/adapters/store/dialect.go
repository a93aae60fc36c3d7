package store

// dialect holds the DDL and paging differences between the two backends.
type dialect struct {
	name       string
	driverName string
	idType     string
	timeType   string
	realType   string
	// offsetOnly renders an OFFSET clause when no limit is set.
	offsetOnly string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:       DriverSQLite,
		driverName: "sqlite3",
		idType:     "INTEGER PRIMARY KEY AUTOINCREMENT",
		timeType:   "DATETIME",
		realType:   "REAL",
		offsetOnly: " LIMIT -1 OFFSET ?",
	},
	DriverPostgres: {
		name:       DriverPostgres,
		driverName: "postgres",
		idType:     "BIGSERIAL PRIMARY KEY",
		timeType:   "TIMESTAMPTZ",
		realType:   "DOUBLE PRECISION",
		offsetOnly: " OFFSET ?",
	},
}

// dialectFor maps a database/sql driver name onto a dialect.
func dialectFor(driverName string) (dialect, bool) {
	switch driverName {
	case "sqlite3", DriverSQLite:
		return dialects[DriverSQLite], true
	case "postgres", "pgx":
		return dialects[DriverPostgres], true
	}
	return dialect{}, false
}

// quote wraps an already validated identifier.
func quote(ident string) string {
	return `"` + ident + `"`
}
