package handlers

import (
	"context"

	"clinic-records/cachekeys"
	"clinic-records/models"
	"clinic-records/schema"
)

// TransactionHandler serves the treatment entry procedures.
type TransactionHandler struct {
	repo models.Repository
}

func NewTransactionHandler(repo models.Repository) *TransactionHandler {
	return &TransactionHandler{repo: repo}
}

// Register mounts the transaction mutations. Each one invalidates the
// detail view of the owning record, which embeds the entry list.
func (h *TransactionHandler) Register(r *RPC) {
	Mutation(r, cachekeys.TransactionAdd, h.Add, owner[schema.TransactionAdd])
	Mutation(r, cachekeys.TransactionEdit, h.Edit, owner[schema.TransactionEdit])
	Mutation(r, cachekeys.TransactionDelete, h.Delete, owner[string])
}

func owner[I any](_ I, out models.Transaction) string {
	return out.RecordID
}

func (h *TransactionHandler) Add(ctx context.Context, in schema.TransactionAdd) (models.Transaction, error) {
	entry := models.Transaction{
		RecordID: in.RecordID,
		Date:     in.Date,
		Tooth:    in.Tooth,
		Service:  in.Service,
		Fees:     in.Fees,
	}
	if err := h.repo.CreateTransaction(ctx, &entry); err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}

func (h *TransactionHandler) Edit(ctx context.Context, in schema.TransactionEdit) (models.Transaction, error) {
	entry := models.Transaction{
		ID:      in.ID,
		Date:    in.Date,
		Tooth:   in.Tooth,
		Service: in.Service,
		Fees:    in.Fees,
	}
	if err := h.repo.UpdateTransaction(ctx, &entry); err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}

func (h *TransactionHandler) Delete(ctx context.Context, id string) (models.Transaction, error) {
	entry, err := h.repo.DeleteTransaction(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	return *entry, nil
}
