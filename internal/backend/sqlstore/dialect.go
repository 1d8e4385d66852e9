package sqlstore

import "strconv"

// dialect captures what differs between the supported SQL engines.
type dialect struct {
	// goose dialect name
	name        string
	dir         string
	placeholder func(n int) string
	// zero means no limit
	maxOpenConns int
}

var postgresDialect = dialect{
	name: "pgx",
	dir:  "postgres",
	placeholder: func(n int) string {
		return "$" + strconv.Itoa(n)
	},
}

var sqliteDialect = dialect{
	name: "sqlite3",
	dir:  "sqlite",
	placeholder: func(int) string {
		return "?"
	},
	maxOpenConns: 1,
}
