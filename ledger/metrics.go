// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type stateMetrics struct {
	operations        *prometheus.CounterVec
	reputationChanges *prometheus.CounterVec
	stakedTotal       prometheus.Gauge
	attestationsTotal prometheus.Counter
	votesTotal        *prometheus.CounterVec
}

func (m *stateMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.operations = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetra_ledger_operations_total",
			Help: "ledger operations, by operation and result",
		},
		[]string{"operation", "result"},
	)
	m.reputationChanges = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetra_ledger_reputation_changes_total",
			Help: "reputation adjustments caused by votes, by direction",
		},
		[]string{"direction"},
	)
	m.stakedTotal = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "vetra_ledger_staked_total",
		Help: "collateral currently staked across all providers",
	})
	m.attestationsTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "vetra_ledger_attestations_created_total",
		Help: "attestations created since startup",
	})
	m.votesTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vetra_ledger_votes_total",
			Help: "votes recorded since startup, by outcome",
		},
		[]string{"accurate"},
	)
}

func (m *stateMetrics) recordReputationDelta(delta int) {
	switch {
	case delta > 0:
		m.reputationChanges.WithLabelValues("up").Inc()
	case delta < 0:
		m.reputationChanges.WithLabelValues("down").Inc()
	default:
		m.reputationChanges.WithLabelValues("none").Inc()
	}
}
