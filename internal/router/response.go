package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"tvwebhook/internal/alert"
	"tvwebhook/internal/query"
)

// Headers returns the fixed header pair carried by every response.
func Headers() map[string]string {
	return map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": "*",
	}
}

type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%d: %s", e.status, e.message)
}

func badRequest(message string) error {
	return &requestError{status: 400, message: message}
}

// decodePayload parses a webhook body. Only a single JSON object is accepted.
func decodePayload(raw []byte) (alert.Payload, error) {
	if len(raw) == 0 {
		return nil, badRequest(MsgNoData)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload alert.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, badRequest(MsgInvalidJSON)
	}
	if payload == nil {
		return nil, badRequest(MsgInvalidJSON)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, badRequest(MsgInvalidJSON)
	}
	return payload, nil
}

type webhookBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AlertID   string `json:"alert_id"`
	Timestamp string `json:"timestamp"`
	AlertName string `json:"alert_name"`
	Symbol    string `json:"symbol"`
}

type statusBody struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	TotalAlerts int64    `json:"total_alerts"`
	ServerTime  string   `json:"server_time"`
	Version     string   `json:"version"`
	Endpoints   []string `json:"endpoints_available"`
}

type alertsBody struct {
	Alerts         []query.Summary `json:"alerts"`
	AlertsReturned int             `json:"alerts_returned"`
	TotalCount     int64           `json:"total_count"`
	Message        string          `json:"message"`
}

type testBody struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	AlertID      string `json:"alert_id"`
	Timestamp    string `json:"timestamp"`
	SymbolParsed bool   `json:"symbol_parsed"`
}

type errorBody struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (r *Router) jsonResponse(status int, body any) Response {
	encoded, err := json.Marshal(body)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to encode response")
		return r.ErrorResponse(500, fmt.Sprintf("Internal server error: encode response: %v", err))
	}
	return Response{StatusCode: status, Headers: Headers(), Body: string(encoded)}
}

// ErrorResponse renders the error envelope.
func (r *Router) ErrorResponse(status int, message string) Response {
	encoded, _ := json.Marshal(errorBody{Error: true, Message: message, Timestamp: r.now()})
	return Response{StatusCode: status, Headers: Headers(), Body: string(encoded)}
}
