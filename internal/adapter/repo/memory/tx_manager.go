package memory

import "context"

type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) TxManager {
	return TxManager{store: store}
}

// RunInTx stages fn's writes and commits them only when fn succeeds. A failed or panicking fn
// leaves the store untouched.
func (t TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromCtx(ctx) != nil {
		return fn(ctx)
	}
	staged := newTx()
	if err := fn(context.WithValue(ctx, txKey, staged)); err != nil {
		return err
	}
	return t.store.commit(staged)
}
