package metrics

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every marketplace metric. It satisfies the metrics ports
// declared by the domain packages.
type Collector struct {
	bidsPlaced         *prometheus.CounterVec
	biddingClosed      *prometheus.CounterVec
	otpIssued          *prometheus.CounterVec
	otpVerifications   *prometheus.CounterVec
	verificationStages *prometheus.CounterVec
	settlements        prometheus.Counter
	settledAmount      *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		bidsPlaced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellflip_bids_placed_total",
				Help: "Bids processed by the bidding engine, by outcome",
			},
			[]string{"outcome"},
		),
		biddingClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellflip_bidding_closed_total",
				Help: "Bidding windows closed, by reason",
			},
			[]string{"reason"},
		),
		otpIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellflip_otp_issued_total",
				Help: "Confirmation codes issued, by purpose",
			},
			[]string{"purpose"},
		),
		otpVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellflip_otp_verifications_total",
				Help: "Confirmation code verification attempts, by purpose and result",
			},
			[]string{"purpose", "result"},
		),
		verificationStages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellflip_verification_stage_transitions_total",
				Help: "Agent verification stage transitions, by target stage",
			},
			[]string{"stage"},
		),
		settlements: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cellflip_settlements_total",
				Help: "Settlements recorded",
			},
		),
		settledAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cellflip_settlement_amount_rupees",
				Help:    "Settlement component amounts in rupees",
				Buckets: prometheus.ExponentialBuckets(100, 2, 14),
			},
			[]string{"component"},
		),
	}
}

func (c *Collector) RecordBid(outcome string) {
	c.bidsPlaced.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordBiddingClosed(reason string) {
	c.biddingClosed.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordCodeIssued(purpose string) {
	c.otpIssued.WithLabelValues(purpose).Inc()
}

func (c *Collector) RecordCodeVerification(purpose, result string) {
	c.otpVerifications.WithLabelValues(purpose, result).Inc()
}

func (c *Collector) RecordStage(stage string) {
	c.verificationStages.WithLabelValues(stage).Inc()
}

// RecordSettlement observes settlement components given in paise.
func (c *Collector) RecordSettlement(clientPayout, agentCommission, platformFee int64) {
	c.settlements.Inc()
	c.settledAmount.WithLabelValues("client_payout").Observe(float64(clientPayout) / 100)
	c.settledAmount.WithLabelValues("agent_commission").Observe(float64(agentCommission) / 100)
	c.settledAmount.WithLabelValues("platform_fee").Observe(float64(platformFee) / 100)
}

// RegisterOutboxBacklog exposes the number of unpublished outbox events, read
// from count on every scrape. A failed read reports NaN.
func RegisterOutboxBacklog(reg prometheus.Registerer, count func(ctx context.Context) (int64, error)) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "cellflip_outbox_pending_events",
			Help: "Outbox events waiting to be published",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := count(ctx)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		},
	)
}
