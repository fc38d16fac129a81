package cronrunner

import (
	"context"

	"go.uber.org/zap"

	"oddlynews/internal/chain"
	"oddlynews/internal/metrics"
)

const ensRetryBatch = 10

type PendingENSRetrier interface {
	RetryPendingENS(ctx context.Context, limit int) (int, error)
}

type BalanceReader interface {
	Balance(ctx context.Context) (*chain.Balance, error)
}

// ENSRetryJob registers subdomains for agents whose registration failed.
func ENSRetryJob(registry PendingENSRetrier, logger *zap.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		done, err := registry.RetryPendingENS(ctx, ensRetryBatch)
		if err != nil {
			return err
		}
		if done > 0 && logger != nil {
			logger.Info("ens retry registered subdomains", zap.Int("count", done))
		}
		return nil
	}
}

// BalanceCheckJob publishes the registrar balance and warns when it drops
// below the configured minimum.
func BalanceCheckJob(registrar BalanceReader, logger *zap.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		bal, err := registrar.Balance(ctx)
		if err != nil {
			return err
		}
		eth, _ := bal.Ether.Float64()
		metrics.SetRegistrarBalance(eth)
		if !bal.Sufficient && logger != nil {
			logger.Warn("registrar balance low",
				zap.String("address", bal.Address.Hex()),
				zap.String("eth", bal.Ether.String()),
			)
		}
		return nil
	}
}
