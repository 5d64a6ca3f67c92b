package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_Ledger(t *testing.T) {
	d := decimal.RequireFromString

	t.Run("Should issue onto a balance", func(t *testing.T) {
		b, err := Issue(d("10"), d("5"))
		assert.Nil(t, err)
		assert.True(t, b.Equal(d("15")))
	})
	t.Run("Should revoke down to zero", func(t *testing.T) {
		b, err := Revoke(d("10"), d("10"))
		assert.Nil(t, err)
		assert.True(t, b.IsZero())
	})
	t.Run("Should refuse to overdraw", func(t *testing.T) {
		b, err := Revoke(d("10"), d("11"))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.True(t, b.Equal(d("10")))
	})
	t.Run("Should reject negative amounts", func(t *testing.T) {
		_, err := Issue(d("1"), d("-1"))
		assert.ErrorIs(t, err, ErrNegativeAmount)
		_, err = Revoke(d("1"), d("-1"))
		assert.ErrorIs(t, err, ErrNegativeAmount)
	})
	t.Run("Should transfer between balances", func(t *testing.T) {
		from, to, err := Transfer(d("1000000000000000000"), d("0"), d("400000000000000000"))
		assert.Nil(t, err)
		assert.True(t, from.Equal(d("600000000000000000")))
		assert.True(t, to.Equal(d("400000000000000000")))
	})
	t.Run("Should leave both balances untouched on a failed transfer", func(t *testing.T) {
		from, to, err := Transfer(d("1"), d("2"), d("3"))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.True(t, from.Equal(d("1")))
		assert.True(t, to.Equal(d("2")))
	})
}
