package http

import (
	"mutdb/internal/model"
	"mutdb/pkg/store"
)

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status Status          `json:"status,omitempty"`
	Row    *model.Account  `json:"row,omitempty"`
	Rows   []model.Account `json:"rows,omitempty"`
	Stats  *store.Stats    `json:"stats,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewRowResponse(row model.Account) Response {
	return Response{Status: StatusSuccess, Row: &row}
}

func NewRowsResponse(rows []model.Account) Response {
	return Response{Status: StatusSuccess, Rows: rows}
}

func NewStatsResponse(stats store.Stats) Response {
	return Response{Status: StatusSuccess, Stats: &stats}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
