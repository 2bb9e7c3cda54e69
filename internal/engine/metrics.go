package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	voucherRedemptions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotspot_voucher_redemptions_total",
		Help: "Successful voucher redemptions",
	})
	coinRedemptions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotspot_coin_redemptions_total",
		Help: "Successful coin redemptions",
	})
	coinPulses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotspot_coin_pulses_total",
		Help: "Coin detector pulses ingested",
	})
	nacFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotspot_nac_failures_total",
		Help: "Failed NAC authorize/revoke invocations",
	})
	sweepRevocations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hotspot_sweep_revocations_total",
		Help: "Expired sessions revoked by the sweep",
	})
	liveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hotspot_live_sessions",
		Help: "Sessions with remaining time, as of the last sweep tick",
	})
)

func InitMetrics() {
	prometheus.MustRegister(
		voucherRedemptions,
		coinRedemptions,
		coinPulses,
		nacFailures,
		sweepRevocations,
		liveSessions,
	)
}
