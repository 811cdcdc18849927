package oidcauth

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	p, m := readyProvider(t, WithMetrics(metrics))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues(string(ActionInitialised))))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Authenticated))

	p.dispatch(UserLoaded(testUser("alice")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Authenticated))

	var active float64
	m.On("SigninSilent", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			active = testutil.ToFloat64(metrics.NavigatorActive.WithLabelValues(string(NavigatorSigninSilent)))
		}).
		Return(nil, errors.New("no session")).Once()

	_, _ = p.Auth().SigninSilent(context.Background(), usermanager.SigninSilentArgs{})
	assert.Equal(t, float64(1), active)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.NavigatorActive.WithLabelValues(string(NavigatorSigninSilent))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues(string(SourceSigninSilent))))

	p.dispatch(UserSignedOut())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Authenticated))

	count, err := testutil.GatherAndCount(reg)
	if assert.NoError(t, err) {
		assert.Positive(t, count)
	}
}

func TestMetrics_Shared(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics(prometheus.NewRegistry())
	p1, _ := readyProvider(t, WithMetrics(metrics))
	p2, _ := readyProvider(t, WithMetrics(metrics))

	p1.dispatch(UserLoaded(testUser("alice")))
	p2.dispatch(UserLoaded(testUser("bob")))
	p2.dispatch(UserLoaded(testUser("bob")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Authenticated))

	p1.dispatch(UserUnloaded())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Authenticated))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues(string(ActionInitialised))))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.observe(UserLoaded(nil), InitialState(), Reduce(InitialState(), UserLoaded(nil)))
	})
}
