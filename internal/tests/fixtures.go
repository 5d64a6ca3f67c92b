package tests

import (
	"context"
	"fmt"
	"time"

	"github.com/gnosis/tradingdb/pkg/chainEvents"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	LmsrMarketMaker = "2f1d0c6e5b9a7f3c8e4d1a6b0c9f2e7d3a5b8c1e"
	TournamentToken = "a4c8e1f5b2d9c6a3e0f7b4d1c8a5e2f9b6d3c0a7"
)

// Address returns a distinct normalized address for n.
func Address(n int) string {
	return fmt.Sprintf("%040x", n)
}

// TransactionHash returns a distinct transaction hash for n.
func TransactionHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func Block(number uint64) *chainEvents.Block {
	return &chainEvents.Block{
		Number:    number,
		Timestamp: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC).Unix() + int64(number)*5,
	}
}

func NewEvent(name string, address string, payload chainEvents.Payload) *chainEvents.Event {
	return &chainEvents.Event{
		Name:    name,
		Address: address,
		Payload: payload,
	}
}

// NewLoggedEvent builds an event that carries a transaction hash and log index.
func NewLoggedEvent(name string, address string, txHash string, logIndex uint64, payload chainEvents.Payload) *chainEvents.Event {
	e := NewEvent(name, address, payload)
	e.TransactionHash = txHash
	e.LogIndex = &logIndex
	return e
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CentralizedOracle(address string, owner string) *relationalDb.Oracle {
	return &relationalDb.Oracle{
		Contract: relationalDb.Contract{
			Address:      address,
			Creator:      owner,
			CreationTime: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		Kind:  relationalDb.OracleKind_Centralized,
		Owner: owner,
	}
}

func CategoricalEvent(address string, oracle string, outcomeCount int) *relationalDb.Event {
	return &relationalDb.Event{
		Contract: relationalDb.Contract{
			Address:      address,
			CreationTime: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		Kind:             relationalDb.EventKind_Categorical,
		OracleAddress:    oracle,
		OutcomeCount:     outcomeCount,
		RedeemedWinnings: decimal.Zero,
	}
}

func ScalarEvent(address string, oracle string, lower decimal.Decimal, upper decimal.Decimal) *relationalDb.Event {
	e := CategoricalEvent(address, oracle, 2)
	e.Kind = relationalDb.EventKind_Scalar
	e.LowerBound = lower
	e.UpperBound = upper
	return e
}

// Market returns a market on eventAddress with an all zero sold vector.
func Market(address string, eventAddress string, outcomeCount int, funding decimal.Decimal) *relationalDb.Market {
	sold := make(datatypes.JSONSlice[decimal.Decimal], outcomeCount)
	for i := range sold {
		sold[i] = decimal.Zero
	}
	stage := relationalDb.MarketStage_Created
	if funding.IsPositive() {
		stage = relationalDb.MarketStage_Funded
	}
	return &relationalDb.Market{
		Contract: relationalDb.Contract{
			Address:      address,
			CreationTime: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		EventAddress:         eventAddress,
		MarketMaker:          LmsrMarketMaker,
		Fee:                  decimal.Zero,
		Stage:                stage,
		Funding:              funding,
		NetOutcomeTokensSold: sold,
		CollectedFees:        decimal.Zero,
		WithdrawnFees:        decimal.Zero,
	}
}

func OutcomeToken(address string, eventAddress string, index int) *relationalDb.OutcomeToken {
	return &relationalDb.OutcomeToken{
		Address:      address,
		EventAddress: eventAddress,
		Index:        index,
		TotalSupply:  decimal.Zero,
	}
}

func TournamentParticipant(address string, created time.Time) *relationalDb.TournamentParticipant {
	return &relationalDb.TournamentParticipant{
		Address: address,
		Created: created,
	}
}

func TournamentParticipantBalance(address string, balance decimal.Decimal) *relationalDb.TournamentParticipantBalance {
	return &relationalDb.TournamentParticipantBalance{
		ParticipantAddress: address,
		Balance:            balance,
	}
}

// Seed stores entities in order inside a single transaction.
func Seed(ctx context.Context, repo relationalDb.Repository, entities ...interface{}) error {
	return repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
		for _, entity := range entities {
			var err error
			switch e := entity.(type) {
			case *relationalDb.Oracle:
				err = tx.UpsertOracle(e)
			case *relationalDb.EventDescription:
				err = tx.CreateEventDescription(e)
			case *relationalDb.Event:
				err = tx.UpsertEvent(e)
			case *relationalDb.OutcomeToken:
				err = tx.UpsertOutcomeToken(e)
			case *relationalDb.OutcomeTokenBalance:
				err = tx.UpsertOutcomeTokenBalance(e)
			case *relationalDb.Market:
				err = tx.UpsertMarket(e)
			case *relationalDb.TournamentParticipant:
				err = tx.UpsertTournamentParticipant(e)
			case *relationalDb.TournamentParticipantBalance:
				err = tx.UpsertTournamentParticipantBalance(e)
			default:
				err = fmt.Errorf("cannot seed %T", entity)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Read runs fn in its own transaction and returns what it produced.
func Read[T any](ctx context.Context, repo relationalDb.Repository, fn func(tx relationalDb.Transaction) (T, error)) (T, error) {
	var result T
	err := repo.WithTransaction(ctx, func(tx relationalDb.Transaction) error {
		var err error
		result, err = fn(tx)
		return err
	})
	return result, err
}
