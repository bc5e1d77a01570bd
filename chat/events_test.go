package chat

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/karthikraju391/pairchat/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPresenterWireFormat(t *testing.T) {
	var got []Event
	p := EventPresenter{Emit: func(e Event) { got = append(got, e) }, Location: time.UTC}

	m := models.Message{ID: "m1", SenderID: "u1", ReceiverID: "u2", Text: "hi", Timestamp: fixedNow.UnixMilli()}
	p.ItemInserted(0, Item{Message: m, Side: Mine})
	p.ScrollTo(0)
	p.InputCleared()
	p.Notice(errors.New("boom"))
	require.Len(t, got, 4)

	b, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "inserted",
		"index": 0,
		"side": "mine",
		"message": {"id":"m1","senderId":"u1","receiverId":"u2","text":"hi","timestamp":1709298300000},
		"rendered": "[01:05 PM] hi"
	}`, string(b))

	b, _ = json.Marshal(got[1])
	assert.JSONEq(t, `{"type":"scroll","index":0}`, string(b))
	b, _ = json.Marshal(got[2])
	assert.JSONEq(t, `{"type":"input_cleared"}`, string(b))
	b, _ = json.Marshal(got[3])
	assert.JSONEq(t, `{"type":"notice","error":"boom"}`, string(b))

	var back Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"inserted","index":2,"side":"theirs"}`), &back))
	assert.Equal(t, Theirs, back.Side)
	assert.Equal(t, 2, *back.Index)
}
