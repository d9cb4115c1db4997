package db

import (
	"log"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/raffleri/raffleri/internal/raffle"
	"github.com/raffleri/raffleri/internal/stream"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the database and migrates the schema. The driver is
// picked from the DSN shape:
//
//	postgres://... or "host=..."   -> postgres
//	user:pass@tcp(host)/db         -> mysql
//	anything else (or empty)       -> sqlite file
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(dialectorFor(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := gdb.AutoMigrate(&stream.Session{}, &stream.Message{}, &raffle.Draw{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}

func dialectorFor(dsn string) gorm.Dialector {
	switch {
	case dsn == "":
		return gormsqlite.Open("raffleri.db")
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="):
		return postgres.Open(dsn)
	case strings.Contains(dsn, "@tcp("):
		return mysql.Open(dsn)
	default:
		return gormsqlite.Open(dsn)
	}
}
