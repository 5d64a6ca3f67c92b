package _202610021415_processedEvents

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `create table if not exists processed_events (
		transaction_hash varchar not null,
		log_index bigint not null,
		receiver varchar not null,
		created_at timestamp with time zone default current_timestamp,
		primary key (transaction_hash, log_index, receiver)
	)`
	if res := grm.Exec(query); res.Error != nil {
		return res.Error
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610021415_processedEvents"
}
