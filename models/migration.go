package models

import (
	"log"

	"bitbucket.org/greenops/fieldops_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Client{}, &Site{},
		&OperationRecord{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
