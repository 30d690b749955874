package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	binding "github.com/goliatone/go-binding"
	"github.com/goliatone/go-binding/internal/merge"
	"github.com/goliatone/go-binding/pkg/records"
	"github.com/google/uuid"
)

// Error codes reported in binding.ErrorDetail.Code.
const (
	CodeRequired           = "required"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidCredentials = "invalid_credentials"
)

// Paging params recognized by Index. They are never used as filters.
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
)

// Credential is one login entry.
type Credential struct {
	Username string
	Password string
	// Token is issued on login. A random token is issued when empty.
	Token string
}

// Option configures a Backend.
type Option func(*shared)

// WithStore uses store instead of a fresh Store.
func WithStore(store *Store) Option {
	return func(s *shared) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRequired marks fields that store and update payloads must carry.
func WithRequired(resource string, fields ...string) Option {
	return func(s *shared) {
		s.required[resource] = append(s.required[resource], fields...)
	}
}

// WithCredentials adds login entries.
func WithCredentials(credentials ...Credential) Option {
	return func(s *shared) {
		for _, credential := range credentials {
			s.credentials[credential.Username] = credential
		}
	}
}

// WithTokens accepts tokens as valid bearer tokens without a login.
func WithTokens(tokens ...string) Option {
	return func(s *shared) {
		for _, token := range tokens {
			s.sessions[token] = ""
		}
	}
}

// WithTokenRequired rejects every request except login whose bearer token is
// not a known session token.
func WithTokenRequired() Option {
	return func(s *shared) {
		s.requireToken = true
	}
}

// WithIDGenerator replaces the uuid generator used for new records.
func WithIDGenerator(fn func() string) Option {
	return func(s *shared) {
		if fn != nil {
			s.newID = fn
		}
	}
}

type shared struct {
	store        *Store
	mu           sync.RWMutex
	required     map[string][]string
	credentials  map[string]Credential
	sessions     map[string]string
	requireToken bool
	newID        func() string
}

// Backend is an in-memory binding.Client.
type Backend struct {
	shared  *shared
	cfg     binding.ClientConfig
	records *records.Set
}

var (
	_ binding.Client     = (*Backend)(nil)
	_ binding.Configurer = (*Backend)(nil)
)

// New constructs a backend.
func New(opts ...Option) *Backend {
	s := &shared{
		store:       NewStore(),
		required:    map[string][]string{},
		credentials: map[string]Credential{},
		sessions:    map[string]string{},
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return &Backend{shared: s, cfg: binding.ClientConfig{RecordKey: binding.DefaultRecordKey}}
}

// Configure returns a backend sharing the store and sessions of b with cfg
// applied. A non-nil cfg.Records enables records tracking seeded from it.
func (b *Backend) Configure(cfg binding.ClientConfig) binding.Client {
	if cfg.RecordKey == "" {
		cfg.RecordKey = binding.DefaultRecordKey
	}
	next := &Backend{shared: b.shared, cfg: cfg}
	if cfg.Records != nil {
		next.records = records.New(cfg.RecordKey, cfg.Records)
	}
	return next
}

// Storage returns the underlying store.
func (b *Backend) Storage() *Store {
	return b.shared.store
}

// Records returns the tracked records, or nil when tracking is off.
func (b *Backend) Records() *records.Set {
	return b.records
}

// Seed stores models under resource, assigning ids where missing.
func (b *Backend) Seed(ctx context.Context, resource string, models ...binding.Model) error {
	for _, model := range models {
		model = merge.Clone(model)
		id := b.ensureID(model)
		if _, err := b.shared.store.Save(ctx, Ref{Resource: resource, ID: id}, model, Meta{}); err != nil {
			return fmt.Errorf("memory: seed %s: %w", resource, err)
		}
	}
	return nil
}

// Index lists resource records matching every non-paging param by value.
func (b *Backend) Index(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Collection], error) {
	if err := ctx.Err(); err != nil {
		return binding.Response[binding.Collection]{}, err
	}
	if errs := b.authorize(); errs != nil {
		return binding.Response[binding.Collection]{Data: binding.Collection{}, Errors: errs}, nil
	}
	all, err := b.shared.store.List(ctx, resource)
	if err != nil {
		return binding.Response[binding.Collection]{}, err
	}

	filtered := make(binding.Collection, 0, len(all))
	for _, model := range all {
		if matches(model, params) {
			filtered = append(filtered, model)
		}
	}
	return binding.Response[binding.Collection]{Data: paginate(filtered, params)}.Normalize(), nil
}

// Show returns the record identified by params[recordKey].
func (b *Backend) Show(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Model], error) {
	if err := ctx.Err(); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	if errs := b.authorize(); errs != nil {
		return failure(errs), nil
	}
	id, ok := b.id(params)
	if !ok {
		return failure(b.requiredKey()), nil
	}
	model, _, found, err := b.shared.store.Load(ctx, Ref{Resource: resource, ID: id})
	if err != nil {
		return binding.Response[binding.Model]{}, err
	}
	if !found {
		return failure(b.notFound(resource, id)), nil
	}
	return binding.Response[binding.Model]{Data: model}.Normalize(), nil
}

// Store validates and inserts data. A record id is generated when missing.
func (b *Backend) Store(ctx context.Context, resource string, data binding.Model) (binding.Response[binding.Model], error) {
	if err := ctx.Err(); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	if errs := b.authorize(); errs != nil {
		return failure(errs), nil
	}
	if errs := b.validate(resource, data); len(errs) > 0 {
		return failure(errs), nil
	}

	model := merge.Clone(data)
	id := b.ensureID(model)
	ref := Ref{Resource: resource, ID: id}
	if _, _, exists, err := b.shared.store.Load(ctx, ref); err != nil {
		return binding.Response[binding.Model]{}, err
	} else if exists {
		return failure([]binding.ErrorDetail{{
			Field:   b.cfg.RecordKey,
			Message: fmt.Sprintf("%s %s already exists", resource, id),
			Code:    CodeConflict,
		}}), nil
	}
	if _, err := b.shared.store.Save(ctx, ref, model, Meta{}); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	return b.mutated(model, nil), nil
}

// Update overlays data on the record identified by data[recordKey].
func (b *Backend) Update(ctx context.Context, resource string, data binding.Model) (binding.Response[binding.Model], error) {
	if err := ctx.Err(); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	if errs := b.authorize(); errs != nil {
		return failure(errs), nil
	}
	id, ok := b.id(binding.Params(data))
	if !ok {
		return failure(b.requiredKey()), nil
	}
	ref := Ref{Resource: resource, ID: id}
	current, meta, found, err := b.shared.store.Load(ctx, ref)
	if err != nil {
		return binding.Response[binding.Model]{}, err
	}
	if !found {
		return failure(b.notFound(resource, id)), nil
	}
	model := merge.Overlay(current, data)
	if errs := b.validate(resource, model); len(errs) > 0 {
		return failure(errs), nil
	}
	if _, err := b.shared.store.Save(ctx, ref, model, Meta{ETag: meta.ETag}); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	return b.mutated(model, nil), nil
}

// Delete removes the record identified by params[recordKey].
func (b *Backend) Delete(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Model], error) {
	if err := ctx.Err(); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	if errs := b.authorize(); errs != nil {
		return failure(errs), nil
	}
	id, ok := b.id(params)
	if !ok {
		return failure(b.requiredKey()), nil
	}
	model, found, err := b.shared.store.Delete(ctx, Ref{Resource: resource, ID: id})
	if err != nil {
		return binding.Response[binding.Model]{}, err
	}
	if !found {
		return failure(b.notFound(resource, id)), nil
	}
	return b.mutated(model, params[b.cfg.RecordKey]), nil
}

// Login checks username and password against the credential table and issues
// a session token.
func (b *Backend) Login(ctx context.Context, credentials binding.Model) (binding.Response[binding.Model], error) {
	if err := ctx.Err(); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	username := stringField(credentials, "username")
	if username == "" {
		username = stringField(credentials, "email")
	}
	password := stringField(credentials, "password")

	var errs []binding.ErrorDetail
	if username == "" {
		errs = append(errs, binding.ErrorDetail{Field: "username", Message: "is required", Code: CodeRequired})
	}
	if password == "" {
		errs = append(errs, binding.ErrorDetail{Field: "password", Message: "is required", Code: CodeRequired})
	}
	if len(errs) > 0 {
		return failure(errs), nil
	}

	b.shared.mu.Lock()
	defer b.shared.mu.Unlock()
	credential, ok := b.shared.credentials[username]
	if !ok || credential.Password != password {
		return failure([]binding.ErrorDetail{{
			Field:   "password",
			Message: "invalid credentials",
			Code:    CodeInvalidCredentials,
		}}), nil
	}
	token := credential.Token
	if token == "" {
		token = uuid.NewString()
	}
	b.shared.sessions[token] = username
	return binding.Response[binding.Model]{
		Data: binding.Model{"token": token, "username": username},
	}.Normalize(), nil
}

// Logout ends the session of data["token"], or of the configured bearer token.
func (b *Backend) Logout(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error) {
	if err := ctx.Err(); err != nil {
		return binding.Response[binding.Model]{}, err
	}
	token := stringField(data, "token")
	if token == "" {
		token = b.cfg.BearerToken
	}
	b.shared.mu.Lock()
	defer b.shared.mu.Unlock()
	username, ok := b.shared.sessions[token]
	if !ok {
		return failure([]binding.ErrorDetail{{Message: "no active session", Code: CodeUnauthorized}}), nil
	}
	delete(b.shared.sessions, token)
	return binding.Response[binding.Model]{Data: binding.Model{"username": username}}.Normalize(), nil
}

// mutated builds a success response, updating tracked records. A non-nil
// removed id deletes the record from the tracked set.
func (b *Backend) mutated(model binding.Model, removed any) binding.Response[binding.Model] {
	resp := binding.Response[binding.Model]{Data: model}
	if b.records != nil {
		if removed != nil {
			b.records.Remove(removed)
		} else {
			b.records.Upsert(binding.Record(merge.Clone(model)))
		}
		resp.Records = b.records.Snapshot()
	}
	return resp.Normalize()
}

func (b *Backend) authorize() []binding.ErrorDetail {
	if !b.shared.requireToken {
		return nil
	}
	b.shared.mu.RLock()
	_, ok := b.shared.sessions[b.cfg.BearerToken]
	b.shared.mu.RUnlock()
	if ok && b.cfg.BearerToken != "" {
		return nil
	}
	return []binding.ErrorDetail{{Message: "bearer token missing or invalid", Code: CodeUnauthorized}}
}

func (b *Backend) validate(resource string, data binding.Model) []binding.ErrorDetail {
	b.shared.mu.RLock()
	required := b.shared.required[resource]
	b.shared.mu.RUnlock()

	var errs []binding.ErrorDetail
	for _, field := range required {
		value, ok := data[field]
		if !ok || value == nil || fmt.Sprint(value) == "" {
			errs = append(errs, binding.ErrorDetail{Field: field, Message: "is required", Code: CodeRequired})
		}
	}
	return errs
}

func (b *Backend) ensureID(model binding.Model) string {
	if id, ok := b.id(binding.Params(model)); ok {
		return id
	}
	id := b.shared.newID()
	model[b.cfg.RecordKey] = id
	return id
}

func (b *Backend) id(params binding.Params) (string, bool) {
	value, ok := params[b.cfg.RecordKey]
	if !ok || value == nil {
		return "", false
	}
	id := strings.TrimSpace(fmt.Sprint(value))
	return id, id != ""
}

func (b *Backend) requiredKey() []binding.ErrorDetail {
	return []binding.ErrorDetail{{Field: b.cfg.RecordKey, Message: "is required", Code: CodeRequired}}
}

func (b *Backend) notFound(resource, id string) []binding.ErrorDetail {
	return []binding.ErrorDetail{{
		Field:   b.cfg.RecordKey,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Code:    CodeNotFound,
	}}
}

func failure(errs []binding.ErrorDetail) binding.Response[binding.Model] {
	return binding.Response[binding.Model]{Data: binding.Model{}, Errors: errs}
}

func matches(model binding.Model, params binding.Params) bool {
	for key, want := range params {
		if key == ParamPage || key == ParamPerPage {
			continue
		}
		got, ok := model[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func paginate(data binding.Collection, params binding.Params) binding.Collection {
	perPage := intParam(params, ParamPerPage, 0)
	if perPage <= 0 {
		return data
	}
	page := intParam(params, ParamPage, 1)
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(data) {
		return binding.Collection{}
	}
	end := start + perPage
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

func intParam(params binding.Params, key string, fallback int) int {
	value, ok := params[key]
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
}

func stringField(model binding.Model, key string) string {
	value, ok := model[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
