package database

import "context"

type txKey struct{}

// TxInfo is the transaction carried in a context. Owned is true only for the
// unit of work that began it; nested units reuse it without committing.
type TxInfo struct {
	Tx    Transaction
	Owned bool
}

// WithTx stores a transaction in the context.
func WithTx(ctx context.Context, tx Transaction, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxInfoFromContext returns the transaction stored in ctx, if any.
func TxInfoFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return TxInfo{}, false
	}
	return info, true
}

// TxFromContext returns the transaction stored in ctx or nil.
func TxFromContext(ctx context.Context) Transaction {
	info, _ := TxInfoFromContext(ctx)
	return info.Tx
}

// ExecutorFromContext prefers the context transaction over the bare connection
// so repositories join whatever unit of work their caller opened.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return conn
}
