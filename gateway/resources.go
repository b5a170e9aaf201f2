package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/scopegate/scopegate"
)

// ProfilePayload is the payload of the "profile" resource
type ProfilePayload struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
}

// DataPayload is the payload of the "data" resource
type DataPayload struct {
	Data      string `json:"data"`
	Timestamp string `json:"timestamp"`
}

// AdminPayload is the payload of the "admin" resource
type AdminPayload struct {
	TotalUsers          int `json:"total_users"`
	TotalClients        int `json:"total_clients"`
	ActiveTokens        int `json:"active_tokens"`
	ActiveRefreshTokens int `json:"active_refresh_tokens"`
}

// Resource serves one of the named protected resources. Each resource is
// gated by its scope: profile requires "profile", data requires "read",
// admin requires "admin". Unknown resource names report not_found.
func (g *Gateway) Resource(ctx context.Context, token, name string) (any, error) {
	var (
		result any
		err    error
	)
	switch name {
	case "profile":
		result, err = g.RequireScope("profile", g.profileResource)(ctx, token)
	case "data":
		result, err = g.RequireScope("read", g.dataResource)(ctx, token)
	case "admin":
		result, err = g.RequireScope("admin", g.adminResource)(ctx, token)
	default:
		err = scopegate.ErrNotFound(fmt.Sprintf("resource %q not found", name))
	}

	if g.instrumentation != nil {
		outcome := "success"
		if err != nil {
			outcome = scopegate.ErrorCode(err)
		}
		g.instrumentation.Metrics().RecordResourceAccess(ctx, name, outcome)
	}
	return result, err
}

func (g *Gateway) profileResource(ctx context.Context, user *UserContext) (any, error) {
	return &ProfilePayload{
		Username: user.Username,
		Scopes:   user.Scopes,
	}, nil
}

func (g *Gateway) dataResource(ctx context.Context, user *UserContext) (any, error) {
	owner := user.Username
	if owner == "" {
		owner = "client"
	}
	return &DataPayload{
		Data:      fmt.Sprintf("Secret data for %s", owner),
		Timestamp: time.Now().Format(time.RFC3339),
	}, nil
}

func (g *Gateway) adminResource(ctx context.Context, user *UserContext) (any, error) {
	payload := &AdminPayload{}
	if g.stats == nil {
		return payload, nil
	}

	var err error
	if payload.TotalUsers, err = g.stats.CountUsers(ctx); err != nil {
		return nil, scopegate.ErrServerError("failed to count users")
	}
	if payload.TotalClients, err = g.stats.CountClients(ctx); err != nil {
		return nil, scopegate.ErrServerError("failed to count clients")
	}
	if payload.ActiveTokens, err = g.stats.CountAccessTokens(ctx); err != nil {
		return nil, scopegate.ErrServerError("failed to count access tokens")
	}
	if payload.ActiveRefreshTokens, err = g.stats.CountRefreshTokens(ctx); err != nil {
		return nil, scopegate.ErrServerError("failed to count refresh tokens")
	}
	return payload, nil
}

// Document is a user-owned record demonstrating resource-level authorization
// on top of scope checks.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Owner   string `json:"owner"`
	Content string `json:"content"`
}

// AddDocument stores a document. Intended for startup seeding and tests.
func (g *Gateway) AddDocument(doc *Document) {
	g.docsMu.Lock()
	defer g.docsMu.Unlock()
	g.documents[doc.ID] = doc
}

// ReadDocument returns a document if the caller holds the "read" scope AND
// either owns the document or holds the "admin" scope. Ownership refusal is
// access_denied, distinct from the insufficient_scope a missing scope yields.
func (g *Gateway) ReadDocument(ctx context.Context, token, docID string) (*Document, error) {
	result, err := g.RequireScope("read", func(ctx context.Context, user *UserContext) (any, error) {
		return g.fetchOwned(user, docID, "read")
	})(ctx, token)
	if err != nil {
		return nil, err
	}
	return result.(*Document), nil
}

// WriteDocument replaces a document's content under the same ownership rule
// as ReadDocument, gated by the "write" scope.
func (g *Gateway) WriteDocument(ctx context.Context, token, docID, content string) (*Document, error) {
	result, err := g.RequireScope("write", func(ctx context.Context, user *UserContext) (any, error) {
		doc, err := g.fetchOwned(user, docID, "write")
		if err != nil {
			return nil, err
		}

		g.docsMu.Lock()
		doc.Content = content
		g.docsMu.Unlock()
		return doc, nil
	})(ctx, token)
	if err != nil {
		return nil, err
	}
	return result.(*Document), nil
}

// fetchOwned looks up a document and enforces the ownership rule: the caller
// must own the document or hold the admin scope.
func (g *Gateway) fetchOwned(user *UserContext, docID, action string) (*Document, error) {
	g.docsMu.RLock()
	doc, ok := g.documents[docID]
	g.docsMu.RUnlock()

	if !ok {
		return nil, scopegate.ErrNotFound(fmt.Sprintf("document %q not found", docID))
	}

	if doc.Owner != user.Username && !user.HasScope("admin") {
		g.auditor.LogAccessDenied(user.Username, docID, action+" refused: not owner")
		return nil, scopegate.ErrAccessDenied("you do not own this document")
	}
	return doc, nil
}
