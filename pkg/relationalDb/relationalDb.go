package relationalDb

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("entity not found")

// Repository applies units of work atomically.
type Repository interface {
	// WithTransaction runs fn inside a single transaction. Returning an error
	// from fn rolls back every write it made.
	WithTransaction(ctx context.Context, fn func(tx Transaction) error) error
}

// Transaction is the set of reads and writes available to one unit of work.
//
// Every Get returns ErrNotFound when the row does not exist. Rows read through
// a Transaction are locked until it ends.
type Transaction interface {
	GetOracle(address string) (*Oracle, error)
	UpsertOracle(oracle *Oracle) error
	DeleteOracle(address string) error

	GetEventDescription(ipfsHash string) (*EventDescription, error)
	// CreateEventDescription inserts the description unless one with the same hash exists.
	CreateEventDescription(description *EventDescription) error

	GetEvent(address string) (*Event, error)
	UpsertEvent(event *Event) error
	DeleteEvent(address string) error

	GetOutcomeToken(address string) (*OutcomeToken, error)
	UpsertOutcomeToken(token *OutcomeToken) error
	GetOutcomeTokenBalance(outcomeTokenAddress string, ownerAddress string) (*OutcomeTokenBalance, error)
	UpsertOutcomeTokenBalance(balance *OutcomeTokenBalance) error

	GetMarket(address string) (*Market, error)
	UpsertMarket(market *Market) error
	DeleteMarket(address string) error

	GetBuyOrder(transactionHash string) (*BuyOrder, error)
	CreateBuyOrder(order *BuyOrder) error
	GetSellOrder(transactionHash string) (*SellOrder, error)
	CreateSellOrder(order *SellOrder) error

	GetTournamentParticipant(address string) (*TournamentParticipant, error)
	UpsertTournamentParticipant(participant *TournamentParticipant) error
	// DeleteTournamentParticipant also removes the participant's balance.
	DeleteTournamentParticipant(address string) error
	GetTournamentParticipantBalance(address string) (*TournamentParticipantBalance, error)
	UpsertTournamentParticipantBalance(balance *TournamentParticipantBalance) error

	// ListParticipantsPendingIssuance returns up to limit participants without issued
	// tokens created at or before createdBefore, oldest first.
	ListParticipantsPendingIssuance(createdBefore time.Time, limit int) ([]*TournamentParticipant, error)
	MarkTokensIssued(addresses []string) error
	ClearTokensIssuedFlag() (int64, error)

	// MarkEventProcessed records that receiver applied the log. It reports true
	// when the log had already been recorded.
	MarkEventProcessed(transactionHash string, logIndex uint64, receiver string) (bool, error)
}
