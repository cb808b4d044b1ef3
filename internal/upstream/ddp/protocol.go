// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ddp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version is the protocol version requested on connect.
const Version = "1"

var supportedVersions = []string{Version, "pre2", "pre1"}

// message is any frame received from the server. Only the fields
// relevant to its msg are set.
type message struct {
	Msg        string              `json:"msg"`
	ID         string              `json:"id,omitempty"`
	Session    string              `json:"session,omitempty"`
	Version    string              `json:"version,omitempty"`
	Subs       []string            `json:"subs,omitempty"`
	Collection string              `json:"collection,omitempty"`
	Fields     map[string]any      `json:"fields,omitempty"`
	Cleared    []string            `json:"cleared,omitempty"`
	Result     jsoniter.RawMessage `json:"result,omitempty"`
	Error      *Error              `json:"error,omitempty"`
	Methods    []string            `json:"methods,omitempty"`
	Reason     string              `json:"reason,omitempty"`
}

type connectMsg struct {
	Msg     string   `json:"msg"`
	Version string   `json:"version"`
	Support []string `json:"support"`
}

type subMsg struct {
	Msg    string `json:"msg"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Params []any  `json:"params"`
}

type methodMsg struct {
	Msg    string `json:"msg"`
	ID     string `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// idMsg is used for unsub, ping and pong.
type idMsg struct {
	Msg string `json:"msg"`
	ID  string `json:"id,omitempty"`
}

// Error is an error reported by the server for a subscription or
// method call.
type Error struct {
	Code      any    `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

// Error implements error.
func (e *Error) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("%s [%v]", e.Reason, e.Code)
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("upstream error %v", e.Code)
	}
}

func params(p []any) []any {
	if p == nil {
		return []any{}
	}
	return p
}
