// Package kv implements the single-datagram key-value protocol.
package kv

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"
)

const (
	// Version is reported for the reserved "version" key.
	Version = "protosrv key-value store 1.0.0"

	versionKey = "version"

	// MaxDatagramSize is the largest request or reply the protocol allows.
	MaxDatagramSize = 1000

	storeTimeout = 3 * time.Second
)

// Handler answers insert and retrieve datagrams against a Store.
type Handler struct {
	store  Store
	logger *log.Logger
}

// NewHandler creates a handler backed by store, or by a MemoryStore when nil.
func NewHandler(store Store, logger *log.Logger) *Handler {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{store: store, logger: logger}
}

// HandlePacket processes one request. Inserts ("key=value", split at the
// first '=') are silent; retrieves reply "key=value" to addr.
func (h *Handler) HandlePacket(data []byte, conn net.PacketConn, addr net.Addr) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msg := string(data)

	if key, value, ok := strings.Cut(msg, "="); ok {
		if key == versionKey {
			h.logger.Printf("kv: ignoring write to %q from %s", versionKey, addr)
			return nil
		}
		if err := h.store.Set(ctx, key, value); err != nil {
			return fmt.Errorf("kv: insert %q: %w", key, err)
		}
		return nil
	}

	reply, err := h.retrieve(ctx, msg)
	if err != nil {
		return err
	}
	if len(reply) > MaxDatagramSize {
		return fmt.Errorf("kv: reply for %q exceeds %d bytes", msg, MaxDatagramSize)
	}
	if _, err := conn.WriteTo([]byte(reply), addr); err != nil {
		return fmt.Errorf("kv: reply to %s: %w", addr, err)
	}
	return nil
}

func (h *Handler) retrieve(ctx context.Context, key string) (string, error) {
	if key == versionKey {
		return versionKey + "=" + Version, nil
	}

	value, _, err := h.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("kv: retrieve %q: %w", key, err)
	}
	return key + "=" + value, nil
}

// Shutdown releases the backing store.
func (h *Handler) Shutdown() {
	if err := h.store.Close(); err != nil {
		h.logger.Printf("kv: close store: %v", err)
	}
}
