package _202610061120_tradingIndexes

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create index if not exists idx_events_oracle_address on events(oracle_address)`,
		`create index if not exists idx_markets_event_address on markets(event_address)`,
		`create index if not exists idx_buy_orders_market_address on buy_orders(market_address)`,
		`create index if not exists idx_sell_orders_market_address on sell_orders(market_address)`,
		`create index if not exists idx_outcome_token_balances_owner on outcome_token_balances(owner_address)`,
		`create index if not exists idx_tournament_participants_pending on tournament_participants(created) where tokens_issued = false`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			fmt.Printf("Failed to execute query: %s\n", query)
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610061120_tradingIndexes"
}
