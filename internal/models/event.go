package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event is the EventBridge envelope GuardDuty publishes for each finding.
// Detail carries the finding itself.
type Event struct {
	Version    string          `json:"version"`
	ID         string          `json:"id"`
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Account    string          `json:"account"`
	Time       time.Time       `json:"time"`
	Region     string          `json:"region"`
	Resources  []string        `json:"resources"`
	Detail     json.RawMessage `json:"detail"`
}

// ErrEmptyEvent is returned by ParseEvent for an empty payload.
var ErrEmptyEvent = errors.New("empty event payload")

// ParseEvent decodes raw into a Finding. raw may be a full EventBridge
// envelope (the finding is read from "detail") or a bare finding document,
// which is what `aws guardduty get-findings` returns per element.
func ParseEvent(raw []byte) (*Finding, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyEvent
	}

	var env Event
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	body := raw
	if len(env.Detail) > 0 && !bytes.Equal(bytes.TrimSpace(env.Detail), []byte("null")) {
		body = env.Detail
	}

	var f Finding
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("decode finding: %w", err)
	}

	// The envelope carries account and region even when older detail
	// payloads omit them.
	if f.AccountID == "" {
		f.AccountID = env.Account
	}
	if f.Region == "" {
		f.Region = env.Region
	}
	return &f, nil
}
