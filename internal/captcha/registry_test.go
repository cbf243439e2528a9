package captcha

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSelection struct {
	id  string
	err error
}

func (s staticSelection) CaptchaProvider(context.Context) (string, error) {
	return s.id, s.err
}

type fakeExtension struct {
	id  string
	reg *Registration
}

func (f fakeExtension) ID() string { return f.id }

func (f fakeExtension) RegisterCaptcha(context.Context) *Registration { return f.reg }

func validating(outcome Outcome) *Registration {
	return &Registration{
		Name:     "Fake",
		Render:   func(context.Context, string) (string, error) { return "<fake/>", nil },
		Validate: func(context.Context, Request) Outcome { return outcome },
	}
}

func newTestRegistry(selected string, exts ...Extension) *Registry {
	r := NewRegistry(staticSelection{id: selected}, zap.NewNop())
	for _, ext := range exts {
		r.Register(ext)
	}
	return r
}

func TestRegistry_DiscoverDropsMalformed(t *testing.T) {
	r := newTestRegistry("",
		fakeExtension{id: "good", reg: validating(Pass())},
		fakeExtension{id: "nil"},
		fakeExtension{id: "no-name", reg: &Registration{Render: validating(Pass()).Render, Validate: validating(Pass()).Validate}},
		fakeExtension{id: "no-validate", reg: &Registration{Name: "x", Render: validating(Pass()).Render}},
	)

	found := r.Discover(context.Background())

	require.Len(t, found, 1)
	assert.Contains(t, found, "good")
	assert.Equal(t, []Provider{{ID: "good", Name: "Fake"}}, r.Providers(context.Background()))
}

func TestRegistry_RegisterReplacesSameID(t *testing.T) {
	r := newTestRegistry("",
		fakeExtension{id: "p", reg: validating(Pass())},
		fakeExtension{id: "p", reg: validating(Fail())},
	)
	found := r.Discover(context.Background())
	require.Len(t, found, 1)
	assert.False(t, found["p"].Validate(context.Background(), Request{}).Passed)
}

func TestRegistry_Selected(t *testing.T) {
	ext := fakeExtension{id: "p", reg: validating(Pass())}

	tests := []struct {
		name   string
		store  SelectionStore
		wantID string
	}{
		{name: "configured and live", store: staticSelection{id: "p"}, wantID: "p"},
		{name: "nothing configured", store: staticSelection{}, wantID: NoneID},
		{name: "uninstalled provider opens the gate", store: staticSelection{id: "gone"}, wantID: NoneID},
		{name: "store failure opens the gate", store: staticSelection{err: errors.New("db down")}, wantID: NoneID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.store, zap.NewNop())
			r.Register(ext)

			id, reg := r.Selected(context.Background())

			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantID != NoneID, reg != nil)
		})
	}
}

func TestRegistry_ValidateTriState(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    Outcome
	}{
		{name: "pass", outcome: Pass(), want: Outcome{Passed: true}},
		{name: "generic failure", outcome: Fail(), want: Outcome{Message: "Please solve captcha"}},
		{name: "provider message verbatim", outcome: FailWithMessage("Too slow!"), want: Outcome{Message: "Too slow!"}},
		{name: "empty rejection becomes generic", outcome: Outcome{}, want: Outcome{Message: "Please solve captcha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry("p", fakeExtension{id: "p", reg: validating(tt.outcome)})
			assert.Equal(t, tt.want, r.Validate(context.Background(), Request{Module: "blocknewsletter"}))
		})
	}
}

func TestRegistry_NoProviderPassesAndRendersNothing(t *testing.T) {
	r := newTestRegistry("gone", fakeExtension{id: "p", reg: validating(Fail())})

	assert.True(t, r.Validate(context.Background(), Request{}).Passed)

	markup, err := r.Render(context.Background(), "blocknewsletter")
	require.NoError(t, err)
	assert.Empty(t, markup)
}

func TestRegistry_RenderSelected(t *testing.T) {
	r := newTestRegistry("p", fakeExtension{id: "p", reg: validating(Pass())})

	markup, err := r.Render(context.Background(), "blocknewsletter")
	require.NoError(t, err)
	assert.Equal(t, "<fake/>", markup)
}
