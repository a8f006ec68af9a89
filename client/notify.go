package client

import (
	"errors"
	"strings"

	"clinic-records/schema"
)

type Operation int

const (
	OpQueryRecords Operation = iota
	OpAddRecord
	OpEditRecord
	OpDeleteRecord
	OpAddTransaction
	OpEditTransaction
	OpDeleteTransaction
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Notification is the user-facing outcome of an operation.
type Notification struct {
	Status  string
	Title   string
	Message string
}

type outcome struct {
	title, success, failure string
}

var outcomes = map[Operation]outcome{
	OpQueryRecords: {
		failure: "An error occurred while getting patient records.",
	},
	OpAddRecord: {
		title:   "Add Record",
		success: "Successfully added patient to records.",
		failure: "An error occurred while adding patient to records.",
	},
	OpEditRecord: {
		title:   "Edit Record",
		success: "Successfully updated the patient's records.",
		failure: "An error occurred while updating the patient's records.",
	},
	OpDeleteRecord: {
		title:   "Delete Record",
		success: "Successfully deleted the patient's records.",
		failure: "An error occurred while deleting the patient's records.",
	},
	OpAddTransaction: {
		title:   "Add Transaction",
		success: "Successfully added transaction to patient's records.",
		failure: "An error occurred while adding transaction to patient's records.",
	},
	OpEditTransaction: {
		title:   "Edit Transaction",
		success: "Successfully edited the transaction.",
		failure: "An error occurred while editing the transaction.",
	},
	OpDeleteTransaction: {
		title:   "Delete Transaction",
		success: "Successfully deleted the transaction.",
		failure: "An error occurred while deleting the transaction.",
	},
}

// NotificationFor describes the outcome of op. Server error text is never
// shown; validation issues are listed field by field instead.
func NotificationFor(op Operation, err error) Notification {
	o := outcomes[op]
	if err == nil {
		return Notification{Status: StatusSuccess, Title: o.title, Message: o.success}
	}

	n := Notification{Status: StatusError, Title: "Error", Message: o.failure}
	if issues := issuesOf(err); len(issues) > 0 {
		lines := make([]string, 0, len(issues))
		for _, is := range issues {
			lines = append(lines, is.Field+" "+is.Message)
		}
		n.Message += " " + strings.Join(lines, "; ") + "."
	}
	return n
}

func issuesOf(err error) []schema.Issue {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return verr.Issues
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Code == CodeBadRequest {
		return cerr.Issues
	}
	return nil
}
