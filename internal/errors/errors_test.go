package errors

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCoreErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *CoreError
		wantErr  string
		wantUser string
	}{
		{
			name:     "what only",
			err:      &CoreError{What: "something broke"},
			wantErr:  "something broke",
			wantUser: "Error: something broke",
		},
		{
			name:     "what and why",
			err:      &CoreError{What: "something broke", Why: "bad input"},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input",
		},
		{
			name: "full error",
			err: &CoreError{
				What: "something broke",
				Why:  "bad input",
				Fix:  "try again",
			},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input\n\nFix: try again",
		},
		{
			name: "with cause",
			err: &CoreError{
				What:  "something broke",
				Cause: errors.New("underlying error"),
			},
			wantErr:  "something broke: underlying error",
			wantUser: "Error: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantErr {
				t.Errorf("Error() = %q, want %q", got, tt.wantErr)
			}
			if got := tt.err.UserMessage(); got != tt.wantUser {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  *CoreError
		want int
	}{
		{ErrBacklogNotFound("b1"), 404},
		{ErrStatusNotFound(7), 404},
		{ErrTaskNotFound(3), 404},
		{ErrValidation("bad", "missing name"), 400},
		{ErrInvariant("no default", "nothing to fall back to"), 422},
		{ErrOrderConflict("out of range", "target below 1"), 409},
		{ErrTransactionFailed(errors.New("disk full")), 500},
		{ErrInternal("target vanished", nil), 500},
	}

	for _, tt := range tests {
		if got := tt.err.HTTPStatus(); got != tt.want {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := ErrInvariant("no default status", "cannot delete").WithCause(errors.New("boom"))

	if !errors.Is(err, ErrInvariant("", "")) {
		t.Error("errors.Is should match CoreErrors by code")
	}
	if errors.Is(err, ErrOrderConflict("", "")) {
		t.Error("errors.Is should not match different codes")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("constraint failed")
	err := ErrTransactionFailed(cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
}

func TestMarshalJSONIncludesCause(t *testing.T) {
	err := ErrTransactionFailed(errors.New("boom"))

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("marshal: %v", jerr)
	}

	var decoded map[string]any
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("unmarshal: %v", jerr)
	}
	if decoded["code"] != string(CodeTransactionFailed) {
		t.Errorf("code = %v, want %s", decoded["code"], CodeTransactionFailed)
	}
	if decoded["cause"] != "boom" {
		t.Errorf("cause = %v, want boom", decoded["cause"])
	}
}
