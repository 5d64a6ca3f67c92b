package chainEvents

import (
	"encoding/json"
	"sort"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrUnknownEventName = errors.New("unknown event name")

// fieldReader remembers the first failed lookup so decoders can read every field
// and check for an error once.
type fieldReader struct {
	params *Params
	err    error
}

func (r *fieldReader) address(name string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.params.Address(name)
	r.err = err
	return v
}

func (r *fieldReader) optionalAddress(names ...string) string {
	for _, name := range names {
		if r.params.Has(name) {
			return r.address(name)
		}
	}
	return ""
}

func (r *fieldReader) text(name string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.params.String(name)
	r.err = err
	return v
}

func (r *fieldReader) number(name string) decimal.Decimal {
	if r.err != nil {
		return decimal.Zero
	}
	v, err := r.params.Decimal(name)
	r.err = err
	return v
}

func (r *fieldReader) integer(name string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.params.Int(name)
	r.err = err
	return v
}

type payloadDecoder func(r *fieldReader) Payload

var payloadDecoders = map[string]payloadDecoder{
	EventName_CentralizedOracleCreation: func(r *fieldReader) Payload {
		return &CentralizedOracleCreation{
			Creator:           r.address("creator"),
			CentralizedOracle: r.address("centralizedOracle"),
			IpfsHash:          r.text("ipfsHash"),
		}
	},
	EventName_ScalarEventCreation: func(r *fieldReader) Payload {
		outcomeCount := int64(2)
		if r.params.Has("outcomeCount") {
			outcomeCount = r.integer("outcomeCount")
		}
		return &ScalarEventCreation{
			Creator:         r.address("creator"),
			CollateralToken: r.address("collateralToken"),
			Oracle:          r.address("oracle"),
			ScalarEvent:     r.address("scalarEvent"),
			OutcomeCount:    int(outcomeCount),
			UpperBound:      r.number("upperBound"),
			LowerBound:      r.number("lowerBound"),
		}
	},
	EventName_CategoricalEventCreation: func(r *fieldReader) Payload {
		return &CategoricalEventCreation{
			Creator:          r.address("creator"),
			CollateralToken:  r.address("collateralToken"),
			Oracle:           r.address("oracle"),
			CategoricalEvent: r.address("categoricalEvent"),
			OutcomeCount:     int(r.integer("outcomeCount")),
		}
	},
	EventName_StandardMarketCreation: func(r *fieldReader) Payload {
		return &StandardMarketCreation{
			Creator:       r.address("creator"),
			Oracle:        r.optionalAddress("centralizedOracle", "oracle"),
			MarketMaker:   r.address("marketMaker"),
			Fee:           r.number("fee"),
			EventContract: r.address("eventContract"),
			Market:        r.address("market"),
		}
	},
	EventName_OutcomeTokenCreation: func(r *fieldReader) Payload {
		return &OutcomeTokenCreation{
			OutcomeToken: r.address("outcomeToken"),
			Index:        int(r.integer("index")),
		}
	},
	EventName_OutcomeAssignment: func(r *fieldReader) Payload {
		return &OutcomeAssignment{
			Outcome: r.integer("outcome"),
		}
	},
	EventName_WinningsRedemption: func(r *fieldReader) Payload {
		return &WinningsRedemption{
			Receiver: r.address("receiver"),
			Winnings: r.number("winnings"),
		}
	},
	EventName_OwnerReplacement: func(r *fieldReader) Payload {
		return &OwnerReplacement{
			NewOwner: r.address("newOwner"),
		}
	},
	EventName_Issuance: func(r *fieldReader) Payload {
		return &Issuance{
			Owner:  r.address("owner"),
			Amount: r.number("amount"),
		}
	},
	EventName_Revocation: func(r *fieldReader) Payload {
		return &Revocation{
			Owner:  r.address("owner"),
			Amount: r.number("amount"),
		}
	},
	EventName_Transfer: func(r *fieldReader) Payload {
		return &Transfer{
			From:  r.address("from"),
			To:    r.address("to"),
			Value: r.number("value"),
		}
	},
	EventName_MarketFunding: func(r *fieldReader) Payload {
		return &MarketFunding{
			Funding: r.number("funding"),
		}
	},
	EventName_MarketClosing: func(r *fieldReader) Payload {
		return &MarketClosing{}
	},
	EventName_FeeWithdrawal: func(r *fieldReader) Payload {
		return &FeeWithdrawal{
			Fees: r.number("fees"),
		}
	},
	EventName_OutcomeTokenPurchase: func(r *fieldReader) Payload {
		return &OutcomeTokenPurchase{
			Buyer:             r.address("buyer"),
			OutcomeTokenIndex: int(r.integer("outcomeTokenIndex")),
			OutcomeTokenCount: r.number("outcomeTokenCount"),
			OutcomeTokenCost:  r.number("outcomeTokenCost"),
			MarketFees:        r.number("marketFees"),
		}
	},
	EventName_OutcomeTokenSale: func(r *fieldReader) Payload {
		return &OutcomeTokenSale{
			Seller:             r.address("seller"),
			OutcomeTokenIndex:  int(r.integer("outcomeTokenIndex")),
			OutcomeTokenCount:  r.number("outcomeTokenCount"),
			OutcomeTokenProfit: r.number("outcomeTokenProfit"),
			MarketFees:         r.number("marketFees"),
		}
	},
	EventName_AddressRegistration: func(r *fieldReader) Payload {
		return &AddressRegistration{
			Registrant:               r.address("registrant"),
			RegisteredMainnetAddress: r.address("registeredMainnetAddress"),
		}
	},
	EventName_IdentityCreated: func(r *fieldReader) Payload {
		return &IdentityCreated{
			Identity:    r.address("identity"),
			Creator:     r.optionalAddress("creator"),
			Owner:       r.optionalAddress("owner"),
			RecoveryKey: r.optionalAddress("recoveryKey"),
		}
	},
}

// EventNames lists every event name Decode understands, sorted.
func EventNames() []string {
	names := make([]string, 0, len(payloadDecoders))
	for name := range payloadDecoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode turns an envelope into an Event with a typed payload.
func Decode(envelope *Envelope) (*Event, error) {
	decode, ok := payloadDecoders[envelope.Name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownEventName, envelope.Name)
	}
	r := &fieldReader{params: NewParams(envelope.Params)}
	payload := decode(r)
	if r.err != nil {
		return nil, errors.Wrapf(r.err, "failed to decode %s", envelope.Name)
	}
	return &Event{
		Name:            envelope.Name,
		Address:         config.NormalizeAddress(envelope.Address),
		TransactionHash: envelope.TransactionHash,
		LogIndex:        envelope.LogIndex,
		Payload:         payload,
	}, nil
}

// DecodeJSON decodes a raw JSON envelope.
func DecodeJSON(raw []byte) (*Event, error) {
	envelope := &Envelope{}
	if err := json.Unmarshal(raw, envelope); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal event envelope")
	}
	return Decode(envelope)
}
