// Package captcha holds the runtime registry of pluggable captcha providers.
// The registry knows no provider by itself: extensions are registered at
// startup and asked to describe themselves on every discovery.
package captcha

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// NoneID is reported by Selected when no usable provider is configured.
const NoneID = "none"

// genericFailureMessage is shown when a provider rejects without its own text.
const genericFailureMessage = "Please solve captcha"

// Request carries what a provider needs to check a submitted challenge.
type Request struct {
	Module   string
	RemoteIP string
	Values   map[string]string
}

// Outcome is the tri-state result of a validation: pass, generic failure
// or failure with a provider supplied message.
type Outcome struct {
	Passed  bool
	Message string
}

// Pass accepts the submission.
func Pass() Outcome { return Outcome{Passed: true} }

// Fail rejects the submission with the generic message.
func Fail() Outcome { return Outcome{Message: genericFailureMessage} }

// FailWithMessage rejects the submission and passes msg through verbatim.
func FailWithMessage(msg string) Outcome {
	if msg == "" {
		return Fail()
	}
	return Outcome{Message: msg}
}

type (
	RenderFunc   func(ctx context.Context, module string) (string, error)
	ValidateFunc func(ctx context.Context, req Request) Outcome
)

// Registration is the discovery response of an extension.
type Registration struct {
	Name     string
	Render   RenderFunc
	Validate ValidateFunc
}

func (r *Registration) wellFormed() bool {
	return r != nil && r.Name != "" && r.Render != nil && r.Validate != nil
}

// Extension is anything able to answer a captcha discovery request.
// RegisterCaptcha may return nil when the extension offers no captcha.
type Extension interface {
	ID() string
	RegisterCaptcha(ctx context.Context) *Registration
}

// SelectionStore returns the configured provider id.
type SelectionStore interface {
	CaptchaProvider(ctx context.Context) (string, error)
}

// Provider describes a discovered provider for the admin listing.
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Registry dispatches captcha calls to the selected provider.
type Registry struct {
	mu         sync.RWMutex
	extensions []Extension
	store      SelectionStore
	log        *zap.Logger
}

func NewRegistry(store SelectionStore, log *zap.Logger) *Registry {
	return &Registry{store: store, log: log}
}

// Register adds an extension. Registering the same id twice replaces the previous one.
func (r *Registry) Register(ext Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.extensions {
		if existing.ID() == ext.ID() {
			r.extensions[i] = ext
			return
		}
	}
	r.extensions = append(r.extensions, ext)
}

// Discover asks every extension for its registration and keeps the well-formed ones.
func (r *Registry) Discover(ctx context.Context) map[string]Registration {
	r.mu.RLock()
	extensions := make([]Extension, len(r.extensions))
	copy(extensions, r.extensions)
	r.mu.RUnlock()

	found := make(map[string]Registration, len(extensions))
	for _, ext := range extensions {
		reg := ext.RegisterCaptcha(ctx)
		if !reg.wellFormed() {
			r.log.Debug("dropping malformed captcha registration", zap.String("extension", ext.ID()))
			continue
		}
		found[ext.ID()] = *reg
	}
	return found
}

// Providers lists the discovered providers ordered by id.
func (r *Registry) Providers(ctx context.Context) []Provider {
	discovered := r.Discover(ctx)
	providers := make([]Provider, 0, len(discovered))
	for id, reg := range discovered {
		providers = append(providers, Provider{ID: id, Name: reg.Name})
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
	return providers
}

// Selected returns the configured provider, or NoneID and nil when nothing usable is configured.
// A configured id that no longer resolves opens the gate instead of failing closed.
func (r *Registry) Selected(ctx context.Context) (string, *Registration) {
	id, err := r.store.CaptchaProvider(ctx)
	if err != nil {
		r.log.Warn("failed to read captcha selection, captcha disabled", zap.Error(err))
		return NoneID, nil
	}
	if id == "" || id == NoneID {
		return NoneID, nil
	}

	reg, ok := r.Discover(ctx)[id]
	if !ok {
		r.log.Warn("configured captcha provider is not available, captcha disabled", zap.String("provider", id))
		return NoneID, nil
	}
	return id, &reg
}

// Validate checks req with the selected provider. Without a provider it passes.
func (r *Registry) Validate(ctx context.Context, req Request) Outcome {
	id, reg := r.Selected(ctx)
	if reg == nil {
		return Pass()
	}
	outcome := reg.Validate(ctx, req)
	if !outcome.Passed && outcome.Message == "" {
		outcome = Fail()
	}
	if !outcome.Passed {
		r.log.Info("captcha rejected submission",
			zap.String("provider", id),
			zap.String("module", req.Module),
			zap.String("ip", req.RemoteIP))
	}
	return outcome
}

// Render returns the markup of the selected provider, empty without one.
func (r *Registry) Render(ctx context.Context, module string) (string, error) {
	_, reg := r.Selected(ctx)
	if reg == nil {
		return "", nil
	}
	return reg.Render(ctx, module)
}
