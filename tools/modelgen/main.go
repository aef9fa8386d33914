// modelgen dumps gorm models for the combat tables of a migrated database, for comparing
// against the hand-maintained structs in internal/adapter/repo/gorm/model.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gen"
	"gorm.io/gorm"
)

var combatTables = []string{
	"combat_sessions",
	"combat_participants",
	"combat_log_entries",
	"combat_events",
}

func main() {
	var dsn, out string
	flag.StringVar(&dsn, "dsn", os.Getenv("COMBATD_DB_DSN"), "postgres dsn")
	flag.StringVar(&out, "out", "tmp/modelgen", "output dir for generated models")
	flag.Parse()

	if dsn == "" {
		log.Fatal("missing --dsn or COMBATD_DB_DSN")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:      out,
		ModelPkgPath: "model",
		Mode:         gen.WithoutContext | gen.WithDefaultQuery,
	})
	g.UseDB(db)
	for _, table := range combatTables {
		g.ApplyBasic(g.GenerateModel(table))
	}
	g.Execute()

	fmt.Printf("generated combat models at %s\n", out)
}
