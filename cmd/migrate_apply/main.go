package main

import (
	"flag"
	"fmt"
	"os"

	"finance_tracker/internal/db"
	"finance_tracker/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	apply := flag.Bool("apply", false, "apply pending migrations")
	down := flag.Int("down", 0, "roll back this many migrations")
	flag.Parse()

	switch {
	case *apply:
		if err := db.Migrate(dsn); err != nil {
			logger.Fatal("failed to apply migrations", "error", err)
		}
		fmt.Println("migrations applied")
	case *down > 0:
		if err := db.MigrateDown(dsn, *down); err != nil {
			logger.Fatal("failed to roll back migrations", "error", err, "steps", *down)
		}
		fmt.Printf("rolled back %d migration(s)\n", *down)
	}

	v, dirty, err := db.MigrationVersion(dsn)
	if err != nil {
		logger.Fatal("failed to read migration version", "error", err)
	}
	fmt.Printf("schema version %d dirty=%v\n", v, dirty)
}
