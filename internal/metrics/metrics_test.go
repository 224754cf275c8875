package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
	"github.com/berfenger/airzone2mqtt/pkg/airzone/transport"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentRecordsCalls(t *testing.T) {

	m := NewTransportMetrics("cloud")
	inst := []transport.Instrument{m.Instrument()}

	transport.RecordTimer("FetchStatus", inst)()
	transport.RecordTimer("FetchStatus", inst)()
	transport.RecordError("FetchStatus", fmt.Errorf("%w: 401", climate.ErrTransport), inst)
	transport.RecordError("FetchStatus", nil, inst)

	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("cloud", "FetchStatus", "transport")))

	registry := NewRegistry(m)
	families, err := registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["airzone_transport_call_duration_seconds"])
	assert.True(t, names["airzone_transport_call_errors_total"])
}

func TestErrorClass(t *testing.T) {

	assert.Equal(t, "parse", ErrorClass(fmt.Errorf("%w: bad json", climate.ErrParse)))
	assert.Equal(t, "configuration", ErrorClass(climate.ErrConfiguration))
	assert.Equal(t, "other", ErrorClass(errors.New("boom")))
}
