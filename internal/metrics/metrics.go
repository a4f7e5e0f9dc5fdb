package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsersRegisteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodshare_users_registered_total",
		Help: "Total number of users successfully registered.",
	},
		[]string{"role"},
	)

	LoginFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_login_failures_total",
		Help: "Total number of rejected login attempts.",
	})

	ListingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_listings_created_total",
		Help: "Total number of listings successfully created.",
	})

	ClaimsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_claims_accepted_total",
		Help: "Total number of pickup requests that claimed a listing.",
	})

	ClaimsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodshare_claims_rejected_total",
		Help: "Total number of pickup requests refused because the listing was not available.",
	},
		[]string{"reason"},
	)

	ListingsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_listings_completed_total",
		Help: "Total number of listings marked as picked up.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodshare_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodshare_outbox_published_total",
		Help: "Outbox tasks handed to the event producer, by result.",
	},
		[]string{"result"},
	)

	UserCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodshare_user_cache_items",
		Help: "Current number of items in the user cache.",
	})
)
