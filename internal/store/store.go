package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/John-Robertt/subhub-go/internal/model"
)

// Document keys. They match the layout of existing deployments so a KV dump
// can be imported as is.
const (
	KeyNodes       = "nodes"
	KeyCollections = "collections"
	KeyUserTokens  = "user_tokens"
	KeySessions    = "sessions"
)

var ErrNotFound = errors.New("not found")

type StoreError struct {
	AppError model.AppError
	Cause    error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func storeError(key, message string, cause error) error {
	return &StoreError{
		AppError: model.AppError{
			Code:    "STORE_ERROR",
			Message: message,
			Stage:   "store_" + key,
		},
		Cause: cause,
	}
}

// Store is the document repository. Every read-modify-write cycle holds mu,
// so concurrent updates inside one process never lose writes.
type Store struct {
	kv KV
	mu sync.Mutex

	now   func() time.Time
	newID func() string
}

func New(kv KV) *Store {
	return &Store{
		kv:    kv,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

func (s *Store) Close() error { return s.kv.Close() }

func load[T any](ctx context.Context, kv KV, key string, out *T) error {
	b, ok, err := kv.Get(ctx, key)
	if err != nil {
		return storeError(key, "读取存储失败", err)
	}
	if !ok || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return storeError(key, "存储数据已损坏", err)
	}
	return nil
}

func save(ctx context.Context, kv KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return storeError(key, "序列化存储数据失败", err)
	}
	if err := kv.Put(ctx, key, b); err != nil {
		return storeError(key, "写入存储失败", err)
	}
	return nil
}

// Nodes

func (s *Store) ListNodes(ctx context.Context) ([]model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes(ctx)
}

func (s *Store) nodes(ctx context.Context) ([]model.Node, error) {
	nodes := []model.Node{}
	if err := load(ctx, s.kv, KeyNodes, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *Store) CreateNode(ctx context.Context, name, rawURL string) (model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := s.nodes(ctx)
	if err != nil {
		return model.Node{}, err
	}
	n := model.Node{ID: s.newID(), Name: name, URL: rawURL, CreatedAt: s.now()}
	if err := save(ctx, s.kv, KeyNodes, append(nodes, n)); err != nil {
		return model.Node{}, err
	}
	return n, nil
}

func (s *Store) UpdateNode(ctx context.Context, id, name, rawURL string) (model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := s.nodes(ctx)
	if err != nil {
		return model.Node{}, err
	}
	_, idx, ok := lo.FindIndexOf(nodes, func(n model.Node) bool { return n.ID == id })
	if !ok {
		return model.Node{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	now := s.now()
	nodes[idx].Name = name
	nodes[idx].URL = rawURL
	nodes[idx].UpdatedAt = &now
	if err := save(ctx, s.kv, KeyNodes, nodes); err != nil {
		return model.Node{}, err
	}
	return nodes[idx], nil
}

// DeleteNode removes the node. Deleting an unknown id is not an error.
// Collections keep dangling ids; they are ignored when resolving members.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := s.nodes(ctx)
	if err != nil {
		return err
	}
	kept := lo.Reject(nodes, func(n model.Node, _ int) bool { return n.ID == id })
	return save(ctx, s.kv, KeyNodes, kept)
}

// Collections

func (s *Store) ListCollections(ctx context.Context) ([]model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collections(ctx)
}

func (s *Store) collections(ctx context.Context) ([]model.Collection, error) {
	cs := []model.Collection{}
	if err := load(ctx, s.kv, KeyCollections, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *Store) GetCollection(ctx context.Context, id string) (model.Collection, error) {
	cs, err := s.ListCollections(ctx)
	if err != nil {
		return model.Collection{}, err
	}
	c, ok := lo.Find(cs, func(c model.Collection) bool { return c.ID == id })
	if !ok {
		return model.Collection{}, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *Store) CreateCollection(ctx context.Context, name string, nodeIDs []string, userID string) (model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.collections(ctx)
	if err != nil {
		return model.Collection{}, err
	}
	c := model.Collection{
		ID:        s.newID(),
		Name:      name,
		NodeIDs:   append([]string{}, nodeIDs...),
		UserID:    userID,
		CreatedAt: s.now(),
	}
	if err := save(ctx, s.kv, KeyCollections, append(cs, c)); err != nil {
		return model.Collection{}, err
	}
	return c, nil
}

// CollectionUpdate changes a collection. Empty Name and nil NodeIDs keep the
// current value.
type CollectionUpdate struct {
	ID      string
	Name    string
	NodeIDs []string
}

func (s *Store) UpdateCollection(ctx context.Context, u CollectionUpdate) (model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.collections(ctx)
	if err != nil {
		return model.Collection{}, err
	}
	_, idx, ok := lo.FindIndexOf(cs, func(c model.Collection) bool { return c.ID == u.ID })
	if !ok {
		return model.Collection{}, fmt.Errorf("collection %s: %w", u.ID, ErrNotFound)
	}
	if u.Name != "" {
		cs[idx].Name = u.Name
	}
	if u.NodeIDs != nil {
		cs[idx].NodeIDs = append([]string{}, u.NodeIDs...)
	}
	now := s.now()
	cs[idx].UpdatedAt = &now
	if err := save(ctx, s.kv, KeyCollections, cs); err != nil {
		return model.Collection{}, err
	}
	return cs[idx], nil
}

// DeleteCollection removes the collection and its credentials. Deleting an
// unknown id is not an error.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.collections(ctx)
	if err != nil {
		return err
	}
	kept := lo.Reject(cs, func(c model.Collection, _ int) bool { return c.ID == id })
	if err := save(ctx, s.kv, KeyCollections, kept); err != nil {
		return err
	}
	tokens, err := s.userTokens(ctx)
	if err != nil {
		return err
	}
	if lo.ContainsBy(tokens, func(t model.UserToken) bool { return t.CollectionID == id }) {
		tokens = lo.Reject(tokens, func(t model.UserToken, _ int) bool { return t.CollectionID == id })
		return save(ctx, s.kv, KeyUserTokens, tokens)
	}
	return nil
}

// CollectionNodes returns the stored nodes referenced by c, in node store
// order. Dangling ids are skipped.
func (s *Store) CollectionNodes(ctx context.Context, c model.Collection) ([]model.Node, error) {
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	members := lo.SliceToMap(c.NodeIDs, func(id string) (string, struct{}) { return id, struct{}{} })
	return lo.Filter(nodes, func(n model.Node, _ int) bool {
		_, ok := members[n.ID]
		return ok
	}), nil
}

// Credentials

func (s *Store) userTokens(ctx context.Context) ([]model.UserToken, error) {
	tokens := []model.UserToken{}
	if err := load(ctx, s.kv, KeyUserTokens, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *Store) ListUserTokens(ctx context.Context) ([]model.UserToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userTokens(ctx)
}

// UserToken returns the credentials of a collection, if any.
func (s *Store) UserToken(ctx context.Context, collectionID string) (model.UserToken, bool, error) {
	tokens, err := s.ListUserTokens(ctx)
	if err != nil {
		return model.UserToken{}, false, err
	}
	t, ok := lo.Find(tokens, func(t model.UserToken) bool { return t.CollectionID == collectionID })
	return t, ok, nil
}

// PutUserToken inserts or replaces the credentials of t.CollectionID.
func (s *Store) PutUserToken(ctx context.Context, t model.UserToken) (model.UserToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, err := s.userTokens(ctx)
	if err != nil {
		return model.UserToken{}, err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	_, idx, ok := lo.FindIndexOf(tokens, func(x model.UserToken) bool { return x.CollectionID == t.CollectionID })
	if ok {
		tokens[idx] = t
	} else {
		tokens = append(tokens, t)
	}
	if err := save(ctx, s.kv, KeyUserTokens, tokens); err != nil {
		return model.UserToken{}, err
	}
	return t, nil
}

// Sessions

func (s *Store) sessions(ctx context.Context) (map[string]model.Session, error) {
	m := map[string]model.Session{}
	if err := load(ctx, s.kv, KeySessions, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// PutSession stores sess and drops sessions that expired before now.
func (s *Store) PutSession(ctx context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.sessions(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	m = lo.OmitBy(m, func(_ string, v model.Session) bool { return v.ExpiresAt.Before(now) })
	m[sess.Token] = sess
	return save(ctx, s.kv, KeySessions, m)
}

// Session returns the live session for token. Expired sessions are reported
// as absent.
func (s *Store) Session(ctx context.Context, token string) (model.Session, bool, error) {
	if token == "" {
		return model.Session{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.sessions(ctx)
	if err != nil {
		return model.Session{}, false, err
	}
	sess, ok := m[token]
	if !ok || sess.ExpiresAt.Before(s.now()) {
		return model.Session{}, false, nil
	}
	return sess, true, nil
}
