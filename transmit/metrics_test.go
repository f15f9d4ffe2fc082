package transmit

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwit-go/tx"
	"github.com/bitfsorg/libwit-go/wit"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.observe(evSigned, tx.KindValueTransfer) })
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.observe(evSent, tx.KindValueTransfer)
	m.observe(evSent, tx.KindValueTransfer)
	m.observe(evSent, tx.KindDataRequest)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.counters[evSent].WithLabelValues("ValueTransfer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.counters[evSent].WithLabelValues("DataRequest")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "wit_transmit_sent_total")

	assert.Panics(t, func() { NewMetrics(reg) }, "duplicate registration")
}

func TestMetrics_CountsOutcomes(t *testing.T) {
	f := newFixture(t, testRates(1), []wit.Nanowits{5000})
	m := NewMetrics(prometheus.NewRegistry())
	tr := f.transmitter(t, tx.NewValueTransfer(), WithMetrics(m))

	f.rejectNext(1)
	_, err := tr.SendTransaction(context.Background(), vtTarget(t, tx.FeeSpec{}, 1000))
	require.ErrorIs(t, err, ErrTransmission)
	sent := mustSend(t, tr, nil)

	f.setScript(inBlock(blockA, 1, true))
	_, err = f.confirm(t, tr, sent.Hash, ConfirmOptions{})
	require.NoError(t, err)

	count := func(ev event) float64 {
		return testutil.ToFloat64(m.counters[ev].WithLabelValues("ValueTransfer"))
	}
	assert.Equal(t, 1.0, count(evSigned))
	assert.Equal(t, 1.0, count(evRejected))
	assert.Equal(t, 1.0, count(evSent))
	assert.Equal(t, 1.0, count(evConfirmed))
	assert.Zero(t, count(evTimeout))
}
