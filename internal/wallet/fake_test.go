package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeSendMoneyIsIdempotent(t *testing.T) {
	fake := NewFake()
	fake.Balance = big.NewFloat(10)

	ctx := context.Background()
	amount := big.NewFloat(3)

	require.NoError(t, fake.SendMoney(ctx, "gid-1", "addr", amount))
	require.NoError(t, fake.SendMoney(ctx, "gid-1", "addr", amount))

	require.Len(t, fake.Sends, 1)
	balance, _ := fake.CheckBalance(ctx)
	require.Equal(t, 0, balance.Cmp(big.NewFloat(7)))
}

func TestFakeSendMoneyInsufficientBalance(t *testing.T) {
	fake := NewFake()
	fake.Balance = big.NewFloat(1)

	err := fake.SendMoney(context.Background(), "gid-2", "addr", big.NewFloat(5))
	require.Error(t, err)

	var insufficient *ErrInsufficientBalance
	require.ErrorAs(t, err, &insufficient)
}
