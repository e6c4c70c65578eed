package conn

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLOptions identifies the server and schema to connect to.
type MySQLOptions struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// NewMySQL opens a MySQL connection, creating the schema first when it is
// missing.
func NewMySQL(o MySQLOptions) (*sql.DB, error) {
	// Ensure database exists by connecting without DB and creating it if needed
	adminDSN := fmt.Sprintf("%s:%s@tcp(%s:%s)/?parseTime=true", o.User, o.Password, o.Host, o.Port)
	adminDB, err := sql.Open("mysql", adminDSN)
	if err != nil {
		return nil, err
	}
	if err := adminDB.Ping(); err != nil {
		adminDB.Close()
		return nil, err
	}
	if _, err := adminDB.Exec("CREATE DATABASE IF NOT EXISTS `" + o.Name + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"); err != nil {
		adminDB.Close()
		return nil, err
	}
	adminDB.Close()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC", o.User, o.Password, o.Host, o.Port, o.Name)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(20)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
