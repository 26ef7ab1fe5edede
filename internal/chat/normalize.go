package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyPayload is returned when the webhook body carries nothing to ingest.
var ErrEmptyPayload = errors.New("empty webhook payload")

// Reply is the result of normalizing an inbound webhook payload: a ReplyRecord
// plus the topic it resolved to.
type Reply struct {
	TopicID int64
	Record  ReplyRecord
}

// matcher tries to extract reply text and identifiers from one known payload
// shape. Matchers are evaluated in order; the first that yields non-empty text
// wins.
type matcher struct {
	name    string
	extract func(raw []byte) (extracted, bool)
}

type extracted struct {
	text      string
	topicID   int64
	userID    int64
	messageID string
}

// envelope covers the keys any of the JSON shapes may carry. Identifier fields
// are decoded leniently: the external service sends them as numbers or strings
// depending on the delivery path.
type envelope struct {
	Response  string          `json:"response"`
	Text      string          `json:"text"`
	TopicID   json.RawMessage `json:"topic_id"`
	UserID    json.RawMessage `json:"user_id"`
	MessageID json.RawMessage `json:"message_id"`
	Change    json.RawMessage `json:"change"`
}

var matchers = []matcher{
	{name: "top_level", extract: extractTopLevel},
	{name: "change_record", extract: extractChangeRecord},
	{name: "minimal", extract: extractMinimal},
	{name: "bare_string", extract: extractBareString},
	{name: "raw_fallback", extract: extractRawFallback},
}

// Normalize turns a raw webhook body into a Reply. Topic and message id fall
// back to defaultTopic and the arrival time when the payload omits them. The
// final matcher serializes the whole payload as the text, so the only failure
// mode is an empty body.
func Normalize(raw []byte, defaultTopic int64) (Reply, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Reply{}, ErrEmptyPayload
	}

	now := Now()
	for _, m := range matchers {
		ext, ok := m.extract(raw)
		if !ok || strings.TrimSpace(ext.text) == "" {
			continue
		}
		topic := ext.topicID
		if topic == 0 {
			topic = defaultTopic
		}
		msgID := ext.messageID
		if msgID == "" {
			msgID = strconv.FormatInt(now, 10)
		}
		return Reply{
			TopicID: topic,
			Record: ReplyRecord{
				Text:       ext.text,
				MessageID:  msgID,
				UserID:     ext.userID,
				ReceivedAt: now,
			},
		}, nil
	}

	return Reply{}, ErrEmptyPayload
}

// Shape 1: {"response": "...", "topic_id": ..., "user_id": ..., "message_id": ...}
func extractTopLevel(raw []byte) (extracted, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return extracted{}, false
	}
	if env.Response == "" {
		return extracted{}, false
	}
	return extracted{
		text:      env.Response,
		topicID:   lenientInt64(env.TopicID),
		userID:    lenientInt64(env.UserID),
		messageID: lenientString(env.MessageID),
	}, true
}

// Shape 2: {"change": {"response"|"text": "...", "topic_id": ..., ...}}
func extractChangeRecord(raw []byte) (extracted, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return extracted{}, false
	}
	if len(env.Change) == 0 {
		return extracted{}, false
	}
	var inner envelope
	if err := json.Unmarshal(env.Change, &inner); err != nil {
		return extracted{}, false
	}
	text := inner.Response
	if text == "" {
		text = inner.Text
	}
	if text == "" {
		return extracted{}, false
	}
	return extracted{
		text:      text,
		topicID:   lenientInt64(inner.TopicID),
		userID:    lenientInt64(inner.UserID),
		messageID: lenientString(inner.MessageID),
	}, true
}

// Shape 3: {"text": "...", "topic_id": ...}
func extractMinimal(raw []byte) (extracted, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return extracted{}, false
	}
	if env.Text == "" {
		return extracted{}, false
	}
	return extracted{text: env.Text, topicID: lenientInt64(env.TopicID)}, true
}

// Shape 4: the body is a bare JSON string; the payload is the text.
func extractBareString(raw []byte) (extracted, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return extracted{}, false
	}
	return extracted{text: s}, true
}

// Shape 5: serialize whatever arrived as the text, so data is never dropped.
func extractRawFallback(raw []byte) (extracted, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// Not JSON at all; take the body verbatim.
		return extracted{text: strings.TrimSpace(string(raw))}, true
	}
	compact, err := json.Marshal(v)
	if err != nil {
		return extracted{}, false
	}
	return extracted{text: string(compact)}, true
}

func lenientInt64(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return fmt.Sprintf("%s", raw)
}
