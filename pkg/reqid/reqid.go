// Package reqid resolves the correlation id attached to outbound requests.
//
// Precedence, highest first: an id the caller set on the request, an id carried in
// the context by the embedding service (WithInbound), a generated "<prefix>_<hex>",
// and finally nothing, leaving the server to assign one.
package reqid

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	// Header carries the correlation id.
	Header = "X-Request-ID"
	// EnvVar is read only by FromEnv, for processes launched as part of a call chain.
	EnvVar = "MERQ_REQUEST_ID"
	// DefaultPrefix is used by sessions that don't configure one.
	DefaultPrefix = "mqu_go_client"
)

// Source says which rule produced a resolved id.
type Source int

const (
	SourceNone Source = iota
	SourceExplicit
	SourceInbound
	SourceGenerated
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceInbound:
		return "inbound"
	case SourceGenerated:
		return "generated"
	default:
		return "none"
	}
}

type inboundKey struct{}

// WithInbound returns a context carrying id as the inbound request id.
// An empty id leaves ctx unchanged.
func WithInbound(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, inboundKey{}, id)
}

// Inbound returns the id stored by WithInbound.
func Inbound(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(inboundKey{}).(string)
	return id, ok && id != ""
}

// FromEnv seeds ctx from MERQ_REQUEST_ID. Libraries never call this; it is for
// entrypoints that inherit a correlation id from their parent process.
func FromEnv(ctx context.Context) context.Context {
	return WithInbound(ctx, os.Getenv(EnvVar))
}

// Generator builds "<prefix>_<hex>" ids. A nil or prefix-less Generator generates nothing.
type Generator struct {
	prefix string
	random func() string
}

// NewGenerator returns a generator for prefix. An empty prefix disables generation.
func NewGenerator(prefix string) *Generator {
	return &Generator{prefix: prefix, random: randomHex}
}

// Prefix returns the configured prefix.
func (g *Generator) Prefix() string {
	if g == nil {
		return ""
	}
	return g.prefix
}

// Generate returns a fresh id, or false when generation is disabled.
func (g *Generator) Generate() (string, bool) {
	if g == nil || g.prefix == "" {
		return "", false
	}
	return g.prefix + "_" + g.random(), true
}

// Resolve applies the precedence rules. explicit is the caller's header value and set
// reports whether the caller supplied the header at all; a set but empty value means
// the caller cleared it, so nothing is propagated or generated.
func (g *Generator) Resolve(ctx context.Context, explicit string, set bool) (string, Source) {
	if set {
		if explicit == "" {
			return "", SourceNone
		}
		return explicit, SourceExplicit
	}
	if id, ok := Inbound(ctx); ok {
		return id, SourceInbound
	}
	if id, ok := g.Generate(); ok {
		return id, SourceGenerated
	}
	return "", SourceNone
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
