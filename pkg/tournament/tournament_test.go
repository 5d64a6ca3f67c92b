package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gnosis/tradingdb/internal/metrics"
	"github.com/gnosis/tradingdb/internal/tests"
	"github.com/gnosis/tradingdb/pkg/notify"
	"github.com/gnosis/tradingdb/pkg/relationalDb"
	"github.com/gnosis/tradingdb/pkg/relationalDb/memoryRepository"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingIssuer struct {
	batches [][]string
	amounts []decimal.Decimal
	err     error
}

func (r *recordingIssuer) Issue(ctx context.Context, addresses []string, amount decimal.Decimal) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, addresses)
	r.amounts = append(r.amounts, amount)
	return nil
}

type recordingNotifier struct {
	notifications []*notify.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n *notify.Notification) error {
	r.notifications = append(r.notifications, n)
	return nil
}

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, issuer TokenIssuer, notifier notify.Notifier) (*TokenDistributor, relationalDb.Repository) {
	repo := memoryRepository.NewMemoryRepository()
	require.Nil(t, tests.Seed(context.Background(), repo,
		tests.TournamentParticipant(tests.Address(1), now.Add(-time.Hour)),
		tests.TournamentParticipant(tests.Address(2), now.Add(-30*time.Minute)),
		tests.TournamentParticipant(tests.Address(3), now.Add(-10*time.Minute)),
		tests.TournamentParticipant(tests.Address(4), now.Add(-10*time.Second)),
	))

	cfg := tests.GetConfig()
	cfg.TournamentConfig.IssuanceMinAge = time.Minute
	cfg.TournamentConfig.IssuanceBatchSize = 2
	cfg.TournamentConfig.TokenIssuance = tests.Dec("1000")

	d := NewTokenDistributor(repo, issuer, notifier, metrics.NewNoopMetricsSink(), cfg, zap.NewNop())
	d.now = func() time.Time { return now }
	return d, repo
}

func issued(t *testing.T, repo relationalDb.Repository, address string) bool {
	p, err := tests.Read(context.Background(), repo, func(tx relationalDb.Transaction) (*relationalDb.TournamentParticipant, error) {
		return tx.GetTournamentParticipant(address)
	})
	require.Nil(t, err)
	return p.TokensIssued
}

func Test_TokenDistributor(t *testing.T) {
	ctx := context.Background()

	t.Run("Should issue to the oldest eligible participants in batches", func(t *testing.T) {
		issuer := &recordingIssuer{}
		d, repo := setup(t, issuer, nil)

		count, err := d.IssueTokens(ctx)
		require.Nil(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, []string{tests.Address(1), tests.Address(2)}, issuer.batches[0])
		assert.True(t, issuer.amounts[0].Equal(tests.Dec("1000")))

		count, err = d.IssueTokens(ctx)
		require.Nil(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, []string{tests.Address(3)}, issuer.batches[1])

		count, err = d.IssueTokens(ctx)
		require.Nil(t, err)
		assert.Equal(t, 0, count)
		assert.Len(t, issuer.batches, 2)
		assert.False(t, issued(t, repo, tests.Address(4)))
	})
	t.Run("Should keep participants pending when the issuer fails", func(t *testing.T) {
		notifier := &recordingNotifier{}
		d, repo := setup(t, &recordingIssuer{err: errors.New("signer offline")}, notifier)

		_, err := d.IssueTokens(ctx)
		assert.NotNil(t, err)
		assert.False(t, issued(t, repo, tests.Address(1)))
		assert.Len(t, notifier.notifications, 1)
	})
	t.Run("Should clear the issued flag of every participant", func(t *testing.T) {
		d, repo := setup(t, &recordingIssuer{}, nil)

		_, err := d.IssueTokens(ctx)
		require.Nil(t, err)
		assert.True(t, issued(t, repo, tests.Address(1)))

		cleared, err := d.ClearIssuedTokensFlag(ctx)
		require.Nil(t, err)
		assert.Equal(t, int64(2), cleared)
		assert.False(t, issued(t, repo, tests.Address(1)))
	})
}

func Test_Scheduler(t *testing.T) {
	t.Run("Should register configured jobs", func(t *testing.T) {
		d, _ := setup(t, &recordingIssuer{}, nil)
		cfg := tests.GetConfig()
		cfg.TournamentConfig.IssueSchedule = "0 */5 * * * *"
		cfg.TournamentConfig.ClearSchedule = ""

		s := NewScheduler(d, cfg, zap.NewNop())
		assert.Nil(t, s.Register(context.Background()))
		assert.Equal(t, 1, s.Entries())
	})
	t.Run("Should reject invalid schedules", func(t *testing.T) {
		d, _ := setup(t, &recordingIssuer{}, nil)
		cfg := tests.GetConfig()
		cfg.TournamentConfig.IssueSchedule = "every five minutes"

		s := NewScheduler(d, cfg, zap.NewNop())
		assert.NotNil(t, s.Register(context.Background()))
	})
}

type fakePublisher struct {
	subject string
	data    []byte
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subject = subject
	f.data = data
	return &jetstream.PubAck{Stream: "ISSUANCE", Sequence: 7}, nil
}

func Test_NatsTokenIssuer(t *testing.T) {
	t.Run("Should publish an issuance request", func(t *testing.T) {
		p := &fakePublisher{}
		issuer := &NatsTokenIssuer{js: p, subject: "tournament.issuance", logger: zap.NewNop()}

		err := issuer.Issue(context.Background(), []string{tests.Address(1)}, tests.Dec("1000"))
		require.Nil(t, err)
		assert.Equal(t, "tournament.issuance", p.subject)

		request := &IssuanceRequest{}
		require.Nil(t, json.Unmarshal(p.data, request))
		assert.NotEmpty(t, request.Id)
		assert.Equal(t, []string{tests.Address(1)}, request.Addresses)
		assert.True(t, request.Amount.Equal(tests.Dec("1000")))
	})
}
