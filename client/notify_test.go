package client

import (
	"errors"
	"testing"

	"clinic-records/schema"

	"github.com/stretchr/testify/assert"
)

func TestNotificationFor(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		err  error
		want Notification
	}{
		{
			name: "add success",
			op:   OpAddRecord,
			want: Notification{Status: StatusSuccess, Title: "Add Record", Message: "Successfully added patient to records."},
		},
		{
			name: "delete success",
			op:   OpDeleteRecord,
			want: Notification{Status: StatusSuccess, Title: "Delete Record", Message: "Successfully deleted the patient's records."},
		},
		{
			name: "query failure hides server text",
			op:   OpQueryRecords,
			err:  &Error{Code: CodeInternal, Message: "pq: connection refused"},
			want: Notification{Status: StatusError, Title: "Error", Message: "An error occurred while getting patient records."},
		},
		{
			name: "local validation lists issues",
			op:   OpAddTransaction,
			err:  &schema.ValidationError{Issues: []schema.Issue{{Field: "fees", Message: "must be greater than 0"}}},
			want: Notification{
				Status:  StatusError,
				Title:   "Error",
				Message: "An error occurred while adding transaction to patient's records. fees must be greater than 0.",
			},
		},
		{
			name: "server validation lists issues",
			op:   OpEditTransaction,
			err: &Error{Code: CodeBadRequest, Issues: []schema.Issue{
				{Field: "tooth", Message: "is required"},
				{Field: "service", Message: "is required"},
			}},
			want: Notification{
				Status:  StatusError,
				Title:   "Error",
				Message: "An error occurred while editing the transaction. tooth is required; service is required.",
			},
		},
		{
			name: "in flight",
			op:   OpDeleteTransaction,
			err:  ErrMutationInFlight,
			want: Notification{Status: StatusError, Title: "Error", Message: "An error occurred while deleting the transaction."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NotificationFor(tt.op, tt.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := error(&Error{Code: CodeNotFound})
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(errors.New("x"), CodeNotFound))
}
