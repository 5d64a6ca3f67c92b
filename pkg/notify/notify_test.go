package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const webhookUrl = "http://hooks.test/tradingdb"

func Test_WebhookNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Should post the notification as JSON", func(t *testing.T) {
		transport := httpmock.NewMockTransport()
		var received Notification
		transport.RegisterResponder("POST", webhookUrl, func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
				return httpmock.NewStringResponse(400, ""), nil
			}
			return httpmock.NewStringResponse(204, ""), nil
		})
		n := NewWebhookNotifier(&http.Client{Transport: transport}, webhookUrl, zap.NewNop())

		err := n.Notify(ctx, NewNotification("issue tokens", errors.New("signer unreachable")))
		assert.Nil(t, err)
		assert.Equal(t, "issue tokens", received.Subject)
		assert.Equal(t, "signer unreachable", received.Message)
		assert.Equal(t, 1, transport.GetTotalCallCount())
	})
	t.Run("Should fail on non success responses", func(t *testing.T) {
		transport := httpmock.NewMockTransport()
		transport.RegisterResponder("POST", webhookUrl, httpmock.NewStringResponder(500, "down"))
		n := NewWebhookNotifier(&http.Client{Transport: transport}, webhookUrl, zap.NewNop())

		err := n.Notify(ctx, NewNotification("issue tokens", errors.New("boom")))
		assert.NotNil(t, err)
	})
}

func Test_NewNotifierFromConfig(t *testing.T) {
	t.Run("Should log when no webhook is configured", func(t *testing.T) {
		n := NewNotifierFromConfig(&config.Config{}, zap.NewNop())
		_, ok := n.(*LogNotifier)
		assert.True(t, ok)
		assert.Nil(t, n.Notify(context.Background(), NewNotification("subject", errors.New("boom"))))
	})
	t.Run("Should use the webhook when configured", func(t *testing.T) {
		n := NewNotifierFromConfig(&config.Config{NotifyConfig: config.NotifyConfig{WebhookUrl: webhookUrl}}, zap.NewNop())
		_, ok := n.(*WebhookNotifier)
		assert.True(t, ok)
	})
}
