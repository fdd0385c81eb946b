package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 认证结果计数器（注册到默认 registry，由 /metrics 导出）
var (
	loginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grocery_auth",
			Subsystem: "auth",
			Name:      "login_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	registerTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "grocery_auth",
			Subsystem: "auth",
			Name:      "register_total",
			Help:      "Successful registrations",
		},
	)

	passwordResetTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "grocery_auth",
			Subsystem: "auth",
			Name:      "password_reset_total",
			Help:      "Completed password resets",
		},
	)
)

const (
	loginOutcomeSuccess            = "success"
	loginOutcomeInvalidCredentials = "invalid_credentials"
	loginOutcomeUnverified         = "unverified"
)
