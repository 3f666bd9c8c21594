package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatterm/pkg/chat"
)

func TestChannelName(t *testing.T) {
	existing := []chat.Channel{
		{ID: "c1", Name: "general"},
		{ID: "c2", Name: "random"},
	}

	tests := []struct {
		name    string
		input   string
		selfID  string
		wantErr error
		wantOK  bool
	}{
		{name: "valid", input: "team-x", wantOK: true},
		{name: "minimum length", input: "abc", wantOK: true},
		{name: "maximum length", input: strings.Repeat("a", 20), wantOK: true},
		{name: "too short", input: "ab"},
		{name: "too long", input: strings.Repeat("a", 21)},
		{name: "whitespace only", input: "   "},
		{name: "duplicate exact", input: "general", wantErr: ErrDuplicateName},
		{name: "duplicate case-insensitive", input: "General", wantErr: ErrDuplicateName},
		{name: "duplicate with padding", input: "  GENERAL  ", wantErr: ErrDuplicateName},
		{name: "rename keeping own name", input: "general", selfID: "c1", wantOK: true},
		{name: "rename onto other channel", input: "random", selfID: "c1", wantErr: ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ChannelName(tt.input, existing, tt.selfID)
			switch {
			case tt.wantOK:
				assert.NoError(t, err)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.Error(t, err)
			}
		})
	}
}

func TestMessageBody(t *testing.T) {
	assert.NoError(t, MessageBody("hi"))
	assert.Error(t, MessageBody(""))
	assert.Error(t, MessageBody("   \n\t"))
}
