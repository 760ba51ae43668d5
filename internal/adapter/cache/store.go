// Package cache implements the TTL response cache used by dispatch, with an
// in-process map or Redis as the backing store.
package cache

import (
	"context"
	"crypto/md5" //nolint:gosec // dedup key, not a security boundary
	"encoding/hex"
	"strings"
	"time"
)

// Store is the pluggable backing store. Implementations must treat entries
// past their TTL as absent.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// DeletePrefix removes every live entry whose key starts with prefix and
	// returns how many it removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Kind() string
	Close() error
}

const hashLen = 16

// Key composes a cache key from the conversation, the requested model, the
// document-presence flag and a fixed-width digest of the message.
func Key(conversationID, model string, hasDocuments bool, message string) string {
	sum := md5.Sum([]byte(message)) //nolint:gosec
	docs := "no_doc"
	if hasDocuments {
		docs = "with_doc"
	}
	var b strings.Builder
	b.WriteString(ConversationPrefix(conversationID))
	b.WriteString("model_")
	b.WriteString(model)
	b.WriteString(":")
	b.WriteString(docs)
	b.WriteString(":hash_")
	b.WriteString(hex.EncodeToString(sum[:])[:hashLen])
	return b.String()
}

// ConversationPrefix is the key prefix shared by every entry of a conversation.
// The id is escaped so that no prefix of one conversation is a prefix of another.
func ConversationPrefix(conversationID string) string {
	return "conv_" + idEscaper.Replace(conversationID) + ":"
}

var idEscaper = strings.NewReplacer("%", "%25", ":", "%3A")
