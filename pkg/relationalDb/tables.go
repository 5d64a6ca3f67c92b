package relationalDb

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Contract holds the fields shared by every entity created by a factory.
type Contract struct {
	Address        string `gorm:"primaryKey"`
	FactoryAddress string
	Creator        string
	CreationBlock  uint64
	CreationTime   time.Time
}

type OracleKind string

const (
	OracleKind_Centralized OracleKind = "centralized"
	OracleKind_Ultimate    OracleKind = "ultimate"
)

type Oracle struct {
	Contract
	Kind         OracleKind
	IsOutcomeSet bool
	Outcome      *int64

	// Centralized oracles only.
	Owner                string
	EventDescriptionHash string
}

func (Oracle) TableName() string { return "oracles" }

type EventDescriptionKind string

const (
	EventDescriptionKind_Plain       EventDescriptionKind = "plain"
	EventDescriptionKind_Categorical EventDescriptionKind = "categorical"
	EventDescriptionKind_Scalar      EventDescriptionKind = "scalar"
)

type EventDescription struct {
	IpfsHash       string `gorm:"primaryKey"`
	Kind           EventDescriptionKind
	Title          string
	Description    string
	ResolutionDate time.Time
	Outcomes       datatypes.JSONSlice[string]
	Unit           string
	Decimals       int
}

func (EventDescription) TableName() string { return "event_descriptions" }

type EventKind string

const (
	EventKind_Categorical EventKind = "categorical"
	EventKind_Scalar      EventKind = "scalar"
)

type Event struct {
	Contract
	Kind                EventKind
	CollateralToken     string
	OracleAddress       string
	IsWinningOutcomeSet bool
	Outcome             *int64
	RedeemedWinnings    decimal.Decimal `gorm:"type:numeric"`
	OutcomeCount        int

	// Scalar events only.
	UpperBound decimal.Decimal `gorm:"type:numeric"`
	LowerBound decimal.Decimal `gorm:"type:numeric"`
}

func (Event) TableName() string { return "events" }

type OutcomeToken struct {
	Address      string `gorm:"primaryKey"`
	EventAddress string
	Index        int
	TotalSupply  decimal.Decimal `gorm:"type:numeric"`
}

func (OutcomeToken) TableName() string { return "outcome_tokens" }

type OutcomeTokenBalance struct {
	OutcomeTokenAddress string          `gorm:"primaryKey"`
	OwnerAddress        string          `gorm:"primaryKey"`
	Balance             decimal.Decimal `gorm:"type:numeric"`
}

func (OutcomeTokenBalance) TableName() string { return "outcome_token_balances" }

type MarketStage int

const (
	MarketStage_Created MarketStage = 0
	MarketStage_Funded  MarketStage = 1
	MarketStage_Closed  MarketStage = 2
)

type Market struct {
	Contract
	EventAddress         string
	MarketMaker          string
	Fee                  decimal.Decimal `gorm:"type:numeric"`
	Stage                MarketStage
	Funding              decimal.Decimal `gorm:"type:numeric"`
	NetOutcomeTokensSold datatypes.JSONSlice[decimal.Decimal]
	CollectedFees        decimal.Decimal `gorm:"type:numeric"`
	WithdrawnFees        decimal.Decimal `gorm:"type:numeric"`
}

func (Market) TableName() string { return "markets" }

// Order is the part of a trade receipt shared by buys and sells.
type Order struct {
	TransactionHash   string `gorm:"primaryKey"`
	MarketAddress     string
	SenderAddress     string
	OutcomeTokenIndex int
	OutcomeTokenCount decimal.Decimal `gorm:"type:numeric"`
	Fees              decimal.Decimal `gorm:"type:numeric"`
	MarginalPrices    datatypes.JSONSlice[decimal.Decimal]
	BlockNumber       uint64
	BlockTime         time.Time
}

type BuyOrder struct {
	Order
	Cost             decimal.Decimal `gorm:"type:numeric"`
	OutcomeTokenCost decimal.Decimal `gorm:"type:numeric"`
}

func (BuyOrder) TableName() string { return "buy_orders" }

type SellOrder struct {
	Order
	Profit             decimal.Decimal `gorm:"type:numeric"`
	OutcomeTokenProfit decimal.Decimal `gorm:"type:numeric"`
}

func (SellOrder) TableName() string { return "sell_orders" }

type TournamentParticipant struct {
	Address        string `gorm:"primaryKey"`
	MainnetAddress *string
	TokensIssued   bool
	Created        time.Time
	CreationBlock  uint64
}

func (TournamentParticipant) TableName() string { return "tournament_participants" }

type TournamentParticipantBalance struct {
	ParticipantAddress string          `gorm:"primaryKey"`
	Balance            decimal.Decimal `gorm:"type:numeric"`
}

func (TournamentParticipantBalance) TableName() string { return "tournament_participant_balances" }

type ProcessedEvent struct {
	TransactionHash string `gorm:"primaryKey"`
	LogIndex        uint64 `gorm:"primaryKey"`
	Receiver        string `gorm:"primaryKey"`
	CreatedAt       time.Time
}

func (ProcessedEvent) TableName() string { return "processed_events" }
