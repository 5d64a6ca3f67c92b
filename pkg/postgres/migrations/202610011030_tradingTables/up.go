package _202610011030_tradingTables

import (
	"database/sql"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create table if not exists event_descriptions (
			ipfs_hash varchar primary key,
			kind varchar not null,
			title varchar not null default '',
			description text not null default '',
			resolution_date timestamp with time zone,
			outcomes jsonb,
			unit varchar not null default '',
			decimals integer not null default 0
		)`,
		`create table if not exists oracles (
			address varchar primary key,
			factory_address varchar not null default '',
			creator varchar not null default '',
			creation_block bigint not null default 0,
			creation_time timestamp with time zone not null,
			kind varchar not null,
			is_outcome_set boolean not null default false,
			outcome bigint,
			owner varchar not null default '',
			event_description_hash varchar not null default ''
		)`,
		`create table if not exists events (
			address varchar primary key,
			factory_address varchar not null default '',
			creator varchar not null default '',
			creation_block bigint not null default 0,
			creation_time timestamp with time zone not null,
			kind varchar not null,
			collateral_token varchar not null default '',
			oracle_address varchar not null,
			is_winning_outcome_set boolean not null default false,
			outcome bigint,
			redeemed_winnings numeric not null default 0 check (redeemed_winnings >= 0),
			outcome_count integer not null,
			upper_bound numeric not null default 0,
			lower_bound numeric not null default 0
		)`,
		`create table if not exists outcome_tokens (
			address varchar primary key,
			event_address varchar not null,
			"index" integer not null check ("index" >= 0),
			total_supply numeric not null default 0 check (total_supply >= 0),
			unique(event_address, "index")
		)`,
		`create table if not exists outcome_token_balances (
			outcome_token_address varchar not null,
			owner_address varchar not null,
			balance numeric not null default 0 check (balance >= 0),
			primary key (outcome_token_address, owner_address)
		)`,
		`create table if not exists markets (
			address varchar primary key,
			factory_address varchar not null default '',
			creator varchar not null default '',
			creation_block bigint not null default 0,
			creation_time timestamp with time zone not null,
			event_address varchar not null,
			market_maker varchar not null,
			fee numeric not null default 0,
			stage integer not null default 0,
			funding numeric not null default 0 check (funding >= 0),
			net_outcome_tokens_sold jsonb not null,
			collected_fees numeric not null default 0,
			withdrawn_fees numeric not null default 0
		)`,
		`create table if not exists buy_orders (
			transaction_hash varchar primary key,
			market_address varchar not null,
			sender_address varchar not null,
			outcome_token_index integer not null,
			outcome_token_count numeric not null,
			fees numeric not null default 0,
			marginal_prices jsonb,
			block_number bigint not null default 0,
			block_time timestamp with time zone not null,
			cost numeric not null,
			outcome_token_cost numeric not null
		)`,
		`create table if not exists sell_orders (
			transaction_hash varchar primary key,
			market_address varchar not null,
			sender_address varchar not null,
			outcome_token_index integer not null,
			outcome_token_count numeric not null,
			fees numeric not null default 0,
			marginal_prices jsonb,
			block_number bigint not null default 0,
			block_time timestamp with time zone not null,
			profit numeric not null,
			outcome_token_profit numeric not null
		)`,
		`create table if not exists tournament_participants (
			address varchar primary key,
			mainnet_address varchar,
			tokens_issued boolean not null default false,
			created timestamp with time zone not null,
			creation_block bigint not null default 0
		)`,
		`create table if not exists tournament_participant_balances (
			participant_address varchar primary key references tournament_participants(address) on delete cascade,
			balance numeric not null default 0 check (balance >= 0)
		)`,
	}

	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return errors.Wrapf(res.Error, "failed to execute query: %s", query)
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610011030_tradingTables"
}
