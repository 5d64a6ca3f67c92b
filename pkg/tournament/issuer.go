package tournament

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TokenIssuer hands a batch of participants to whatever mints their tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, addresses []string, amount decimal.Decimal) error
}

// IssuanceRequest is published for the signer that mints tournament tokens.
type IssuanceRequest struct {
	Id          string          `json:"id"`
	Addresses   []string        `json:"addresses"`
	Amount      decimal.Decimal `json:"amount"`
	RequestedAt time.Time       `json:"requestedAt"`
}

type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NatsTokenIssuer publishes issuance requests to a JetStream subject. The
// request id is used as the message id so a retried publish is deduplicated.
type NatsTokenIssuer struct {
	js      publisher
	subject string
	logger  *zap.Logger
}

func NewNatsTokenIssuer(js jetstream.JetStream, subject string, l *zap.Logger) *NatsTokenIssuer {
	return &NatsTokenIssuer{
		js:      js,
		subject: subject,
		logger:  l,
	}
}

func (n *NatsTokenIssuer) Issue(ctx context.Context, addresses []string, amount decimal.Decimal) error {
	request := &IssuanceRequest{
		Id:          uuid.NewString(),
		Addresses:   addresses,
		Amount:      amount,
		RequestedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "failed to marshal issuance request")
	}

	ack, err := n.js.Publish(ctx, n.subject, data, jetstream.WithMsgID(request.Id))
	if err != nil {
		return errors.Wrapf(err, "failed to publish issuance request %s", request.Id)
	}
	n.logger.Sugar().Infow("Published issuance request",
		zap.String("id", request.Id),
		zap.Int("participants", len(addresses)),
		zap.String("amount", amount.String()),
		zap.Uint64("sequence", ack.Sequence),
	)
	return nil
}
