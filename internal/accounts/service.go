package accounts

import (
	"context"
	"fmt"

	"mutdb/internal/model"
	"mutdb/pkg/columnar"
	"mutdb/pkg/config"
	"mutdb/pkg/store"
	"mutdb/pkg/types"
)

// Service exposes account operations over a local store.
type Service struct {
	st *store.Store[model.Account]
}

// Open opens (or creates) the account store described by cfg.
func Open(cfg config.StoreConfig, opts ...store.Option) (*Service, error) {
	tbl, err := model.NewTable(columnar.WithCompression(cfg.Codec()))
	if err != nil {
		return nil, fmt.Errorf("failed to build account table: %w", err)
	}

	st, err := store.New[model.Account](cfg, tbl, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	return &Service{st: st}, nil
}

func (s *Service) Upsert(_ context.Context, rows ...model.Account) error {
	return s.st.Update(store.Upsert(rows...))
}

func (s *Service) Delete(_ context.Context, ids ...types.RowID) error {
	return s.st.Update(store.Delete[model.Account](ids...))
}

func (s *Service) Get(_ context.Context, id types.RowID) (model.Account, error) {
	return s.st.Get(id)
}

// Scan returns the live accounts matching f in physical order.
func (s *Service) Scan(_ context.Context, f model.Filter) ([]model.Account, error) {
	rows := make([]model.Account, 0)
	err := s.st.Select(store.SelectorFunc[model.Account](func(v *store.View[model.Account]) error {
		return v.Scan(f.Predicates(), func(_ types.Offset, row model.Account) bool {
			rows = append(rows, row)
			return true
		})
	}))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) Flush(_ context.Context) error {
	return s.st.Flush()
}

func (s *Service) Stats(_ context.Context) (store.Stats, error) {
	return s.st.Stats()
}

func (s *Service) Close() error {
	return s.st.Close()
}
