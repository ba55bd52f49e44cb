// Package protocol implements the wire codec for the auction line
// protocol: "<type> <k1>=<v1> <k2>=<v2> ... <kN>=<vN>\n".
package protocol

import (
	"strconv"
	"strings"
)

// Reserved keys every task stamps onto outbound messages and requires
// on inbound ones.
const (
	SessionKey = "sessionId"
	AuctionKey = "auctionId"
)

// Message is a single decoded logical message: a type plus an
// unordered bag of key/value arguments.
type Message struct {
	Type string
	Args map[string]string
}

// Encode renders a message as a wire line, without the trailing
// newline. Values containing spaces are encoded with underscores, per
// spec.md §6 ("' ' <-> '_' at the send boundary"). Key order is
// unspecified (map iteration), matching the original's HashMap-backed
// implementation: receivers must not depend on key order.
func Encode(msgType string, args map[string]string) string {
	var b strings.Builder
	b.WriteString(msgType)
	for k, v := range args {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(v, " ", "_"))
	}
	return b.String()
}

// Decode splits a raw line into a type and a key/value map. It never
// errors: malformed key=value tokens are silently dropped, matching
// spec.md's "malformed tokens silently dropped." A line that is empty
// or entirely whitespace decodes to a Message with an empty Type and
// nil Args; callers should treat that as nothing to dispatch.
func Decode(line string) Message {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Message{}
	}

	msgType := fields[0]
	args := make(map[string]string, len(fields)-1)
	for _, tok := range fields[1:] {
		key, val, ok := splitKeyVal(tok)
		if !ok {
			continue
		}
		args[key] = val
	}
	return Message{Type: msgType, Args: args}
}

// splitKeyVal parses a single "key=value" token. Tokens with zero or
// more than one '=' are malformed and rejected, mirroring the original
// Java implementation's String.split("=") length-must-be-2 check.
func splitKeyVal(tok string) (key, val string, ok bool) {
	parts := strings.Split(tok, "=")
	if len(parts) != 2 {
		return "", "", false
	}
	key = strings.TrimSpace(parts[0])
	val = strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", false
	}
	return key, val, true
}

// RequireIDs extracts and validates the SessionKey/AuctionKey pair that
// every inbound message must carry. ok is false if either key is
// missing or not a valid integer.
func RequireIDs(args map[string]string) (sessionID, auctionID int, ok bool) {
	sessionStr, hasSession := args[SessionKey]
	auctionStr, hasAuction := args[AuctionKey]
	if !hasSession || !hasAuction {
		return 0, 0, false
	}

	sid, err := strconv.Atoi(sessionStr)
	if err != nil {
		return 0, 0, false
	}
	aid, err := strconv.Atoi(auctionStr)
	if err != nil {
		return 0, 0, false
	}
	return sid, aid, true
}

// WithIDs returns a copy of args with SessionKey/AuctionKey set, the
// decoration every task applies before sending a message (spec.md §4.2
// "sendMessage... decorates args with this task's sessionId and
// auctionId").
func WithIDs(args map[string]string, sessionID, auctionID int) map[string]string {
	out := make(map[string]string, len(args)+2)
	for k, v := range args {
		out[k] = v
	}
	out[SessionKey] = strconv.Itoa(sessionID)
	out[AuctionKey] = strconv.Itoa(auctionID)
	return out
}
