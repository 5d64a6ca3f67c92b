package memoryRepository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gnosis/tradingdb/pkg/relationalDb"
)

type balanceKey struct {
	OutcomeToken string
	Owner        string
}

type processedKey struct {
	TransactionHash string
	LogIndex        uint64
	Receiver        string
}

// MemoryRepository keeps every table in process. Transactions are serialized
// and their writes only become visible when fn returns without error.
type MemoryRepository struct {
	mu sync.Mutex

	oracles             *table[string, relationalDb.Oracle]
	eventDescriptions   *table[string, relationalDb.EventDescription]
	events              *table[string, relationalDb.Event]
	outcomeTokens       *table[string, relationalDb.OutcomeToken]
	outcomeTokenBalance *table[balanceKey, relationalDb.OutcomeTokenBalance]
	markets             *table[string, relationalDb.Market]
	buyOrders           *table[string, relationalDb.BuyOrder]
	sellOrders          *table[string, relationalDb.SellOrder]
	participants        *table[string, relationalDb.TournamentParticipant]
	participantBalances *table[string, relationalDb.TournamentParticipantBalance]
	processedEvents     *table[processedKey, relationalDb.ProcessedEvent]
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		oracles: newTable[string](func(o relationalDb.Oracle) relationalDb.Oracle {
			o.Outcome = cloneInt64(o.Outcome)
			return o
		}),
		eventDescriptions: newTable[string](func(d relationalDb.EventDescription) relationalDb.EventDescription {
			d.Outcomes = cloneStrings(d.Outcomes)
			return d
		}),
		events: newTable[string](func(e relationalDb.Event) relationalDb.Event {
			e.Outcome = cloneInt64(e.Outcome)
			return e
		}),
		outcomeTokens:       newTable[string](identity[relationalDb.OutcomeToken]),
		outcomeTokenBalance: newTable[balanceKey](identity[relationalDb.OutcomeTokenBalance]),
		markets: newTable[string](func(m relationalDb.Market) relationalDb.Market {
			m.NetOutcomeTokensSold = cloneDecimals(m.NetOutcomeTokensSold)
			return m
		}),
		buyOrders: newTable[string](func(o relationalDb.BuyOrder) relationalDb.BuyOrder {
			o.MarginalPrices = cloneDecimals(o.MarginalPrices)
			return o
		}),
		sellOrders: newTable[string](func(o relationalDb.SellOrder) relationalDb.SellOrder {
			o.MarginalPrices = cloneDecimals(o.MarginalPrices)
			return o
		}),
		participants: newTable[string](func(p relationalDb.TournamentParticipant) relationalDb.TournamentParticipant {
			p.MainnetAddress = cloneString(p.MainnetAddress)
			return p
		}),
		participantBalances: newTable[string](identity[relationalDb.TournamentParticipantBalance]),
		processedEvents:     newTable[processedKey](identity[relationalDb.ProcessedEvent]),
	}
}

func (r *MemoryRepository) WithTransaction(ctx context.Context, fn func(tx relationalDb.Transaction) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := r.begin()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in transaction: %v", p)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *MemoryRepository) begin() *memoryTransaction {
	return &memoryTransaction{
		oracles:             newPending(r.oracles),
		eventDescriptions:   newPending(r.eventDescriptions),
		events:              newPending(r.events),
		outcomeTokens:       newPending(r.outcomeTokens),
		outcomeTokenBalance: newPending(r.outcomeTokenBalance),
		markets:             newPending(r.markets),
		buyOrders:           newPending(r.buyOrders),
		sellOrders:          newPending(r.sellOrders),
		participants:        newPending(r.participants),
		participantBalances: newPending(r.participantBalances),
		processedEvents:     newPending(r.processedEvents),
	}
}

type memoryTransaction struct {
	oracles             *pending[string, relationalDb.Oracle]
	eventDescriptions   *pending[string, relationalDb.EventDescription]
	events              *pending[string, relationalDb.Event]
	outcomeTokens       *pending[string, relationalDb.OutcomeToken]
	outcomeTokenBalance *pending[balanceKey, relationalDb.OutcomeTokenBalance]
	markets             *pending[string, relationalDb.Market]
	buyOrders           *pending[string, relationalDb.BuyOrder]
	sellOrders          *pending[string, relationalDb.SellOrder]
	participants        *pending[string, relationalDb.TournamentParticipant]
	participantBalances *pending[string, relationalDb.TournamentParticipantBalance]
	processedEvents     *pending[processedKey, relationalDb.ProcessedEvent]
}

func (t *memoryTransaction) commit() {
	t.oracles.commit()
	t.eventDescriptions.commit()
	t.events.commit()
	t.outcomeTokens.commit()
	t.outcomeTokenBalance.commit()
	t.markets.commit()
	t.buyOrders.commit()
	t.sellOrders.commit()
	t.participants.commit()
	t.participantBalances.commit()
	t.processedEvents.commit()
}

func find[K comparable, V any](p *pending[K, V], key K) (*V, error) {
	v, ok := p.get(key)
	if !ok {
		return nil, relationalDb.ErrNotFound
	}
	return &v, nil
}

func (t *memoryTransaction) GetOracle(address string) (*relationalDb.Oracle, error) {
	return find(t.oracles, address)
}

func (t *memoryTransaction) UpsertOracle(oracle *relationalDb.Oracle) error {
	t.oracles.put(oracle.Address, *oracle)
	return nil
}

func (t *memoryTransaction) DeleteOracle(address string) error {
	t.oracles.delete(address)
	return nil
}

func (t *memoryTransaction) GetEventDescription(ipfsHash string) (*relationalDb.EventDescription, error) {
	return find(t.eventDescriptions, ipfsHash)
}

func (t *memoryTransaction) CreateEventDescription(description *relationalDb.EventDescription) error {
	if _, ok := t.eventDescriptions.get(description.IpfsHash); ok {
		return nil
	}
	t.eventDescriptions.put(description.IpfsHash, *description)
	return nil
}

func (t *memoryTransaction) GetEvent(address string) (*relationalDb.Event, error) {
	return find(t.events, address)
}

func (t *memoryTransaction) UpsertEvent(event *relationalDb.Event) error {
	t.events.put(event.Address, *event)
	return nil
}

func (t *memoryTransaction) DeleteEvent(address string) error {
	t.events.delete(address)
	return nil
}

func (t *memoryTransaction) GetOutcomeToken(address string) (*relationalDb.OutcomeToken, error) {
	return find(t.outcomeTokens, address)
}

func (t *memoryTransaction) UpsertOutcomeToken(token *relationalDb.OutcomeToken) error {
	var conflict bool
	t.outcomeTokens.each(func(address string, existing relationalDb.OutcomeToken) {
		if address != token.Address && existing.EventAddress == token.EventAddress && existing.Index == token.Index {
			conflict = true
		}
	})
	if conflict {
		return fmt.Errorf("outcome token index %d already exists for event %s", token.Index, token.EventAddress)
	}
	t.outcomeTokens.put(token.Address, *token)
	return nil
}

func (t *memoryTransaction) GetOutcomeTokenBalance(outcomeTokenAddress string, ownerAddress string) (*relationalDb.OutcomeTokenBalance, error) {
	return find(t.outcomeTokenBalance, balanceKey{OutcomeToken: outcomeTokenAddress, Owner: ownerAddress})
}

func (t *memoryTransaction) UpsertOutcomeTokenBalance(balance *relationalDb.OutcomeTokenBalance) error {
	if balance.Balance.IsNegative() {
		return fmt.Errorf("balance of %s for %s must not be negative", balance.OwnerAddress, balance.OutcomeTokenAddress)
	}
	t.outcomeTokenBalance.put(balanceKey{OutcomeToken: balance.OutcomeTokenAddress, Owner: balance.OwnerAddress}, *balance)
	return nil
}

func (t *memoryTransaction) GetMarket(address string) (*relationalDb.Market, error) {
	return find(t.markets, address)
}

func (t *memoryTransaction) UpsertMarket(market *relationalDb.Market) error {
	t.markets.put(market.Address, *market)
	return nil
}

func (t *memoryTransaction) DeleteMarket(address string) error {
	t.markets.delete(address)
	return nil
}

func (t *memoryTransaction) GetBuyOrder(transactionHash string) (*relationalDb.BuyOrder, error) {
	return find(t.buyOrders, transactionHash)
}

func (t *memoryTransaction) CreateBuyOrder(order *relationalDb.BuyOrder) error {
	if _, ok := t.buyOrders.get(order.TransactionHash); ok {
		return nil
	}
	t.buyOrders.put(order.TransactionHash, *order)
	return nil
}

func (t *memoryTransaction) GetSellOrder(transactionHash string) (*relationalDb.SellOrder, error) {
	return find(t.sellOrders, transactionHash)
}

func (t *memoryTransaction) CreateSellOrder(order *relationalDb.SellOrder) error {
	if _, ok := t.sellOrders.get(order.TransactionHash); ok {
		return nil
	}
	t.sellOrders.put(order.TransactionHash, *order)
	return nil
}

func (t *memoryTransaction) GetTournamentParticipant(address string) (*relationalDb.TournamentParticipant, error) {
	return find(t.participants, address)
}

func (t *memoryTransaction) UpsertTournamentParticipant(participant *relationalDb.TournamentParticipant) error {
	t.participants.put(participant.Address, *participant)
	return nil
}

func (t *memoryTransaction) DeleteTournamentParticipant(address string) error {
	t.participants.delete(address)
	t.participantBalances.delete(address)
	return nil
}

func (t *memoryTransaction) GetTournamentParticipantBalance(address string) (*relationalDb.TournamentParticipantBalance, error) {
	return find(t.participantBalances, address)
}

func (t *memoryTransaction) UpsertTournamentParticipantBalance(balance *relationalDb.TournamentParticipantBalance) error {
	if _, ok := t.participants.get(balance.ParticipantAddress); !ok {
		return fmt.Errorf("tournament participant %s does not exist", balance.ParticipantAddress)
	}
	if balance.Balance.IsNegative() {
		return fmt.Errorf("balance of participant %s must not be negative", balance.ParticipantAddress)
	}
	t.participantBalances.put(balance.ParticipantAddress, *balance)
	return nil
}

func (t *memoryTransaction) ListParticipantsPendingIssuance(createdBefore time.Time, limit int) ([]*relationalDb.TournamentParticipant, error) {
	participants := make([]*relationalDb.TournamentParticipant, 0)
	t.participants.each(func(_ string, p relationalDb.TournamentParticipant) {
		if !p.TokensIssued && !p.Created.After(createdBefore) {
			participants = append(participants, &p)
		}
	})
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].Created.Equal(participants[j].Created) {
			return participants[i].Address < participants[j].Address
		}
		return participants[i].Created.Before(participants[j].Created)
	})
	if limit > 0 && len(participants) > limit {
		participants = participants[:limit]
	}
	return participants, nil
}

func (t *memoryTransaction) MarkTokensIssued(addresses []string) error {
	for _, address := range addresses {
		p, ok := t.participants.get(address)
		if !ok {
			continue
		}
		p.TokensIssued = true
		t.participants.put(address, p)
	}
	return nil
}

func (t *memoryTransaction) ClearTokensIssuedFlag() (int64, error) {
	issued := make([]relationalDb.TournamentParticipant, 0)
	t.participants.each(func(_ string, p relationalDb.TournamentParticipant) {
		if p.TokensIssued {
			issued = append(issued, p)
		}
	})
	for _, p := range issued {
		p.TokensIssued = false
		t.participants.put(p.Address, p)
	}
	return int64(len(issued)), nil
}

func (t *memoryTransaction) MarkEventProcessed(transactionHash string, logIndex uint64, receiver string) (bool, error) {
	key := processedKey{TransactionHash: transactionHash, LogIndex: logIndex, Receiver: receiver}
	if _, ok := t.processedEvents.get(key); ok {
		return true, nil
	}
	t.processedEvents.put(key, relationalDb.ProcessedEvent{
		TransactionHash: transactionHash,
		LogIndex:        logIndex,
		Receiver:        receiver,
		CreatedAt:       time.Now().UTC(),
	})
	return false, nil
}
