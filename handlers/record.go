package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"clinic-records/cachekeys"
	"clinic-records/models"
	"clinic-records/schema"
	"clinic-records/utils"

	"go.uber.org/zap"
)

const suggestLimit = 10

// RecordHandler serves the record procedures.
type RecordHandler struct {
	repo   models.Repository
	events *EventPublisher
	search utils.ElasticsearchClient
	logger *zap.Logger
	now    func() time.Time
}

// NewRecordHandler wires the record procedures. events and search may be
// nil when Kafka or Elasticsearch are not configured.
func NewRecordHandler(repo models.Repository, events *EventPublisher, search utils.ElasticsearchClient, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		repo:   repo,
		events: events,
		search: search,
		logger: logger,
		now:    time.Now,
	}
}

type ListRecordsOutput struct {
	PageCount int                    `json:"pageCount"`
	Records   []models.RecordSummary `json:"records"`
}

// RecordResponse is a record with its derived age.
type RecordResponse struct {
	models.Record
	Age int `json:"age"`
}

// RecordDetail is a record together with its treatment entries.
type RecordDetail struct {
	RecordResponse
	Entries []models.Transaction `json:"entries"`
}

func (h *RecordHandler) Register(r *RPC) {
	Query(r, cachekeys.RecordAll, true, h.List)
	Query(r, cachekeys.RecordSpecific, true, h.Specific)
	Query(r, cachekeys.RecordSuggest, false, h.Suggest)

	Mutation(r, cachekeys.RecordAdd, h.Add, func(_ schema.Record, out RecordResponse) string { return out.ID })
	Mutation(r, cachekeys.RecordEdit, h.Edit, func(_ schema.RecordEdit, out RecordResponse) string { return out.ID })
	Mutation(r, cachekeys.RecordDelete, h.Delete, func(id string, _ RecordResponse) string { return id })
}

func (h *RecordHandler) List(ctx context.Context, in schema.ListRecordsInput) (ListRecordsOutput, error) {
	page, err := h.repo.ListRecords(ctx, models.ListQuery{
		Page:   in.PageNumber,
		Search: in.SearchTerm,
		Desc:   in.SortType == schema.SortDesc,
	})
	if err != nil {
		return ListRecordsOutput{}, err
	}
	return ListRecordsOutput{PageCount: page.PageCount, Records: page.Records}, nil
}

// Specific returns nil, not an error, when the record does not exist.
func (h *RecordHandler) Specific(ctx context.Context, id string) (*RecordDetail, error) {
	record, err := h.repo.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	entries := record.Entries
	if entries == nil {
		entries = []models.Transaction{}
	}
	return &RecordDetail{RecordResponse: h.toResponse(record), Entries: entries}, nil
}

func (h *RecordHandler) Add(ctx context.Context, in schema.Record) (RecordResponse, error) {
	record := fromInput(in)
	if err := h.repo.CreateRecord(ctx, record); err != nil {
		return RecordResponse{}, err
	}

	h.publish(models.EventRecordCreated, record)
	return h.toResponse(record), nil
}

func (h *RecordHandler) Edit(ctx context.Context, in schema.RecordEdit) (RecordResponse, error) {
	record := fromInput(in.Record)
	record.ID = in.ID
	if err := h.repo.UpdateRecord(ctx, record); err != nil {
		return RecordResponse{}, err
	}

	h.publish(models.EventRecordUpdated, record)
	return h.toResponse(record), nil
}

func (h *RecordHandler) Delete(ctx context.Context, id string) (RecordResponse, error) {
	record, err := h.repo.DeleteRecord(ctx, id)
	if err != nil {
		return RecordResponse{}, err
	}

	h.publish(models.EventRecordDeleted, record)
	return h.toResponse(record), nil
}

// Suggest completes a name prefix from the search index. Without a search
// backend it returns no suggestions.
func (h *RecordHandler) Suggest(ctx context.Context, in schema.SuggestInput) ([]models.RecordSummary, error) {
	out := []models.RecordSummary{}
	if h.search == nil {
		return out, nil
	}

	docs, err := h.search.SearchDocuments(ctx, models.RecordsIndex, map[string]interface{}{
		"size": suggestLimit,
		"query": map[string]interface{}{
			"match_phrase_prefix": map[string]interface{}{
				"name": in.Prefix,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		var s models.RecordSummary
		if err := json.Unmarshal(doc, &s); err != nil {
			h.logger.Warn("Skipping malformed search hit", zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (h *RecordHandler) toResponse(record *models.Record) RecordResponse {
	return RecordResponse{Record: *record, Age: models.AgeAt(time.Time(record.Birthday), h.now())}
}

func fromInput(in schema.Record) *models.Record {
	return &models.Record{
		Name:       in.Name,
		Address:    in.Address,
		Telephone:  in.Telephone,
		Occupation: in.Occupation,
		Status:     in.Status,
		Gender:     in.Gender,
		Complaint:  in.Complaint,
		Birthday:   in.Birthday,
	}
}

// Вспомогательные методы

func (h *RecordHandler) publish(eventType string, record *models.Record) {
	if h.events == nil {
		return
	}
	h.events.Publish(models.RecordEventsTopic, record.ID, models.RecordEvent{
		Event: eventType,
		Data:  models.RecordSummary{ID: record.ID, Name: record.Name},
	})
}
