package postgresRepository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gnosis/tradingdb/pkg/postgres/helpers"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresRepository(db *gorm.DB, l *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: l,
	}
}

func (r *PostgresRepository) WithTransaction(ctx context.Context, fn func(tx relationalDb.Transaction) error) (err error) {
	_, err = helpers.WrapTxAndCommit(func(tx *gorm.DB) (res interface{}, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic in transaction: %v", p)
			}
		}()
		return nil, fn(&postgresTransaction{tx: tx})
	}, r.db.WithContext(ctx), nil)
	return err
}

type postgresTransaction struct {
	tx *gorm.DB
}

func (t *postgresTransaction) forUpdate() *gorm.DB {
	return t.tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func translateError(res *gorm.DB) error {
	if res.Error == nil {
		return nil
	}
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return relationalDb.ErrNotFound
	}
	return res.Error
}

func getByAddress[T any](t *postgresTransaction, address string) (*T, error) {
	var entity T
	res := t.forUpdate().Where("address = ?", address).First(&entity)
	if err := translateError(res); err != nil {
		return nil, err
	}
	return &entity, nil
}

func upsert[T any](t *postgresTransaction, entity *T) error {
	return t.tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(entity).Error
}

func (t *postgresTransaction) GetOracle(address string) (*relationalDb.Oracle, error) {
	return getByAddress[relationalDb.Oracle](t, address)
}

func (t *postgresTransaction) UpsertOracle(oracle *relationalDb.Oracle) error {
	return upsert(t, oracle)
}

func (t *postgresTransaction) DeleteOracle(address string) error {
	return t.tx.Where("address = ?", address).Delete(&relationalDb.Oracle{}).Error
}

func (t *postgresTransaction) GetEventDescription(ipfsHash string) (*relationalDb.EventDescription, error) {
	var description relationalDb.EventDescription
	res := t.tx.Where("ipfs_hash = ?", ipfsHash).First(&description)
	if err := translateError(res); err != nil {
		return nil, err
	}
	return &description, nil
}

func (t *postgresTransaction) CreateEventDescription(description *relationalDb.EventDescription) error {
	return t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(description).Error
}

func (t *postgresTransaction) GetEvent(address string) (*relationalDb.Event, error) {
	return getByAddress[relationalDb.Event](t, address)
}

func (t *postgresTransaction) UpsertEvent(event *relationalDb.Event) error {
	return upsert(t, event)
}

func (t *postgresTransaction) DeleteEvent(address string) error {
	return t.tx.Where("address = ?", address).Delete(&relationalDb.Event{}).Error
}

func (t *postgresTransaction) GetOutcomeToken(address string) (*relationalDb.OutcomeToken, error) {
	return getByAddress[relationalDb.OutcomeToken](t, address)
}

func (t *postgresTransaction) UpsertOutcomeToken(token *relationalDb.OutcomeToken) error {
	return upsert(t, token)
}

func (t *postgresTransaction) GetOutcomeTokenBalance(outcomeTokenAddress string, ownerAddress string) (*relationalDb.OutcomeTokenBalance, error) {
	var balance relationalDb.OutcomeTokenBalance
	res := t.forUpdate().
		Where("outcome_token_address = ? and owner_address = ?", outcomeTokenAddress, ownerAddress).
		First(&balance)
	if err := translateError(res); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (t *postgresTransaction) UpsertOutcomeTokenBalance(balance *relationalDb.OutcomeTokenBalance) error {
	return upsert(t, balance)
}

func (t *postgresTransaction) GetMarket(address string) (*relationalDb.Market, error) {
	return getByAddress[relationalDb.Market](t, address)
}

func (t *postgresTransaction) UpsertMarket(market *relationalDb.Market) error {
	return upsert(t, market)
}

func (t *postgresTransaction) DeleteMarket(address string) error {
	return t.tx.Where("address = ?", address).Delete(&relationalDb.Market{}).Error
}

func getByTransactionHash[T any](t *postgresTransaction, transactionHash string) (*T, error) {
	var order T
	res := t.tx.Where("transaction_hash = ?", transactionHash).First(&order)
	if err := translateError(res); err != nil {
		return nil, err
	}
	return &order, nil
}

func (t *postgresTransaction) GetBuyOrder(transactionHash string) (*relationalDb.BuyOrder, error) {
	return getByTransactionHash[relationalDb.BuyOrder](t, transactionHash)
}

func (t *postgresTransaction) CreateBuyOrder(order *relationalDb.BuyOrder) error {
	return t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(order).Error
}

func (t *postgresTransaction) GetSellOrder(transactionHash string) (*relationalDb.SellOrder, error) {
	return getByTransactionHash[relationalDb.SellOrder](t, transactionHash)
}

func (t *postgresTransaction) CreateSellOrder(order *relationalDb.SellOrder) error {
	return t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(order).Error
}

func (t *postgresTransaction) GetTournamentParticipant(address string) (*relationalDb.TournamentParticipant, error) {
	return getByAddress[relationalDb.TournamentParticipant](t, address)
}

func (t *postgresTransaction) UpsertTournamentParticipant(participant *relationalDb.TournamentParticipant) error {
	return upsert(t, participant)
}

func (t *postgresTransaction) DeleteTournamentParticipant(address string) error {
	return t.tx.Where("address = ?", address).Delete(&relationalDb.TournamentParticipant{}).Error
}

func (t *postgresTransaction) GetTournamentParticipantBalance(address string) (*relationalDb.TournamentParticipantBalance, error) {
	var balance relationalDb.TournamentParticipantBalance
	res := t.forUpdate().Where("participant_address = ?", address).First(&balance)
	if err := translateError(res); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (t *postgresTransaction) UpsertTournamentParticipantBalance(balance *relationalDb.TournamentParticipantBalance) error {
	return upsert(t, balance)
}

func (t *postgresTransaction) ListParticipantsPendingIssuance(createdBefore time.Time, limit int) ([]*relationalDb.TournamentParticipant, error) {
	participants := make([]*relationalDb.TournamentParticipant, 0)
	res := t.tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("tokens_issued = false and created <= ?", createdBefore).
		Order("created asc").
		Limit(limit).
		Find(&participants)
	if res.Error != nil {
		return nil, res.Error
	}
	return participants, nil
}

func (t *postgresTransaction) MarkTokensIssued(addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	return t.tx.Model(&relationalDb.TournamentParticipant{}).
		Where("address in ?", addresses).
		Update("tokens_issued", true).Error
}

func (t *postgresTransaction) ClearTokensIssuedFlag() (int64, error) {
	res := t.tx.Model(&relationalDb.TournamentParticipant{}).
		Where("tokens_issued = true").
		Update("tokens_issued", false)
	return res.RowsAffected, res.Error
}

func (t *postgresTransaction) MarkEventProcessed(transactionHash string, logIndex uint64, receiver string) (bool, error) {
	res := t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&relationalDb.ProcessedEvent{
		TransactionHash: transactionHash,
		LogIndex:        logIndex,
		Receiver:        receiver,
		CreatedAt:       time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 0, nil
}
