package chainEvents

import (
	"github.com/shopspring/decimal"
)

const (
	EventName_CentralizedOracleCreation = "CentralizedOracleCreation"
	EventName_ScalarEventCreation       = "ScalarEventCreation"
	EventName_CategoricalEventCreation  = "CategoricalEventCreation"
	EventName_StandardMarketCreation    = "StandardMarketCreation"
	EventName_OutcomeTokenCreation      = "OutcomeTokenCreation"
	EventName_OutcomeAssignment         = "OutcomeAssignment"
	EventName_WinningsRedemption        = "WinningsRedemption"
	EventName_OwnerReplacement          = "OwnerReplacement"
	EventName_Issuance                  = "Issuance"
	EventName_Revocation                = "Revocation"
	EventName_Transfer                  = "Transfer"
	EventName_MarketFunding             = "MarketFunding"
	EventName_MarketClosing             = "MarketClosing"
	EventName_FeeWithdrawal             = "FeeWithdrawal"
	EventName_OutcomeTokenPurchase      = "OutcomeTokenPurchase"
	EventName_OutcomeTokenSale          = "OutcomeTokenSale"
	EventName_AddressRegistration       = "AddressRegistration"
	EventName_IdentityCreated           = "IdentityCreated"
)

// Payload is the typed body of an event. Every event name has exactly one payload type.
type Payload interface {
	payload()
}

type CentralizedOracleCreation struct {
	Creator           string
	CentralizedOracle string
	IpfsHash          string
}

type ScalarEventCreation struct {
	Creator         string
	CollateralToken string
	Oracle          string
	ScalarEvent     string
	OutcomeCount    int
	UpperBound      decimal.Decimal
	LowerBound      decimal.Decimal
}

type CategoricalEventCreation struct {
	Creator          string
	CollateralToken  string
	Oracle           string
	CategoricalEvent string
	OutcomeCount     int
}

type StandardMarketCreation struct {
	Creator       string
	Oracle        string
	MarketMaker   string
	Fee           decimal.Decimal
	EventContract string
	Market        string
}

type OutcomeTokenCreation struct {
	OutcomeToken string
	Index        int
}

type OutcomeAssignment struct {
	Outcome int64
}

type WinningsRedemption struct {
	Receiver string
	Winnings decimal.Decimal
}

type OwnerReplacement struct {
	NewOwner string
}

type Issuance struct {
	Owner  string
	Amount decimal.Decimal
}

type Revocation struct {
	Owner  string
	Amount decimal.Decimal
}

type Transfer struct {
	From  string
	To    string
	Value decimal.Decimal
}

type MarketFunding struct {
	Funding decimal.Decimal
}

type MarketClosing struct{}

type FeeWithdrawal struct {
	Fees decimal.Decimal
}

type OutcomeTokenPurchase struct {
	Buyer             string
	OutcomeTokenIndex int
	OutcomeTokenCount decimal.Decimal
	OutcomeTokenCost  decimal.Decimal
	MarketFees        decimal.Decimal
}

type OutcomeTokenSale struct {
	Seller             string
	OutcomeTokenIndex  int
	OutcomeTokenCount  decimal.Decimal
	OutcomeTokenProfit decimal.Decimal
	MarketFees         decimal.Decimal
}

type AddressRegistration struct {
	Registrant               string
	RegisteredMainnetAddress string
}

type IdentityCreated struct {
	Identity    string
	Creator     string
	Owner       string
	RecoveryKey string
}

func (*CentralizedOracleCreation) payload() {}
func (*ScalarEventCreation) payload()       {}
func (*CategoricalEventCreation) payload()  {}
func (*StandardMarketCreation) payload()    {}
func (*OutcomeTokenCreation) payload()      {}
func (*OutcomeAssignment) payload()         {}
func (*WinningsRedemption) payload()        {}
func (*OwnerReplacement) payload()          {}
func (*Issuance) payload()                  {}
func (*Revocation) payload()                {}
func (*Transfer) payload()                  {}
func (*MarketFunding) payload()             {}
func (*MarketClosing) payload()             {}
func (*FeeWithdrawal) payload()             {}
func (*OutcomeTokenPurchase) payload()      {}
func (*OutcomeTokenSale) payload()          {}
func (*AddressRegistration) payload()       {}
func (*IdentityCreated) payload()           {}
