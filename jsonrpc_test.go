// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

func TestJSONRPCResponse_Marshal(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		resp *JSONRPCResponse
		want string
	}{
		"success: result echoes id": {
			resp: NewJSONRPCResult(jsontext.Value(`"req-1"`), map[string]string{"ok": "yes"}),
			want: `{"jsonrpc":"2.0","id":"req-1","result":{"ok":"yes"}}`,
		},
		"success: missing id becomes null": {
			resp: NewJSONRPCErrorResponse(nil, NewJSONParseError()),
			want: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Invalid JSON payload"}}`,
		},
		"success: error data": {
			resp: NewJSONRPCErrorResponse(jsontext.Value(`7`), NewTaskNotFoundError("t1")),
			want: `{"jsonrpc":"2.0","id":7,"error":{"code":-32001,"message":"Task not found","data":"t1"}}`,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := json.Marshal(tt.resp, json.Deterministic(true))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMessageSendParams_Validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		params  *MessageSendParams
		wantErr bool
	}{
		"success: message":       {params: &MessageSendParams{Message: NewUserTextMessage("hi")}},
		"error: nil params":      {params: nil, wantErr: true},
		"error: no message":      {params: &MessageSendParams{}, wantErr: true},
		"error: invalid message": {params: &MessageSendParams{Message: &Message{Role: RoleUser}}, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInput) {
				t.Errorf("Validate() error = %v, want ErrInput", err)
			}
		})
	}
}
