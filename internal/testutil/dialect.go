package testutil

import "github.com/roach88/querylift/internal/dialect"

// MySQL returns a current MySQL 8.0 dialect with every capability.
func MySQL(opts ...dialect.Option) *dialect.Dialect {
	return dialect.MustNew("mysql-8.0.35", opts...)
}

// MySQLNoLateral returns the last MySQL release before LATERAL support.
// Window functions and JSON_TABLE are available.
func MySQLNoLateral(opts ...dialect.Option) *dialect.Dialect {
	return dialect.MustNew("mysql-8.0.13", opts...)
}

// MySQL57 returns a dialect without LATERAL, window functions or JSON_TABLE.
func MySQL57(opts ...dialect.Option) *dialect.Dialect {
	return dialect.MustNew("mysql-5.7.44", opts...)
}

// MariaDB returns a MariaDB 10.11 dialect (no LATERAL).
func MariaDB(opts ...dialect.Option) *dialect.Dialect {
	return dialect.MustNew("mariadb-10.11", opts...)
}
