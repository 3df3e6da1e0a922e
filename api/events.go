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

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/williamhnyohei/Vetra/event"
	"github.com/williamhnyohei/Vetra/ledger"
)

const (
	eventStreamBuffer    = 64
	eventStreamKeepalive = 15 * time.Second
)

// ledgerEventTypes are the event types forwarded by GET /api/v1/events
var ledgerEventTypes = []event.EventType{
	ledger.ProviderStakedEventType,
	ledger.AttestationCreatedEventType,
	ledger.AttestationVotedEventType,
	ledger.ProviderWithdrawnEventType,
	ledger.WalletAirdroppedEventType,
}

// ProviderStakedEventResponse is the data of a ledger.provider.staked event
type ProviderStakedEventResponse struct {
	Provider ProviderResponse `json:"provider"`
	Amount   uint64           `json:"amount,string"`
	Created  bool             `json:"created"`
}

// AttestationVotedEventResponse is the data of a ledger.attestation.voted event
type AttestationVotedEventResponse struct {
	Attestation     AttestationResponse `json:"attestation"`
	Owner           ProviderResponse    `json:"owner"`
	Voter           ledger.Identity     `json:"voter"`
	IsAccurate      bool                `json:"is_accurate"`
	ReputationDelta int                 `json:"reputation_delta"`
}

type ProviderWithdrawnEventResponse struct {
	Provider ProviderResponse `json:"provider"`
	Amount   uint64           `json:"amount,string"`
}

type WalletAirdroppedEventResponse struct {
	Recipient ledger.Identity `json:"recipient"`
	Amount    uint64          `json:"amount,string"`
	Balance   uint64          `json:"balance,string"`
}

// eventResponse converts ledger event data to its JSON form. It returns
// false for data it does not know about
func eventResponse(data any) (any, bool) {
	switch d := data.(type) {
	case ledger.ProviderStakedEvent:
		return ProviderStakedEventResponse{
			Provider: newProviderResponse(&d.Provider),
			Amount:   d.Amount,
			Created:  d.Created,
		}, true
	case ledger.AttestationCreatedEvent:
		return newAttestationResponse(&d.Attestation), true
	case ledger.AttestationVotedEvent:
		return AttestationVotedEventResponse{
			Attestation:     newAttestationResponse(&d.Attestation),
			Owner:           newProviderResponse(&d.Owner),
			Voter:           d.Voter,
			IsAccurate:      d.IsAccurate,
			ReputationDelta: d.ReputationDelta,
		}, true
	case ledger.ProviderWithdrawnEvent:
		return ProviderWithdrawnEventResponse{
			Provider: newProviderResponse(&d.Provider),
			Amount:   d.Amount,
		}, true
	case ledger.WalletAirdroppedEvent:
		return WalletAirdroppedEventResponse{
			Recipient: d.Recipient,
			Amount:    d.Amount,
			Balance:   d.Balance,
		}, true
	default:
		return nil, false
	}
}

// handleEvents streams committed ledger events as server-sent events until
// the client disconnects. A client that falls behind loses events rather
// than stalling the bus
func (s *Server) handleEvents(
	w http.ResponseWriter,
	r *http.Request,
) {
	if s.config.EventBus == nil {
		writeError(w, http.StatusNotFound, "not_found", "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	evtCh := make(chan event.Event, eventStreamBuffer)
	subIds := make(map[event.EventType]event.EventSubscriberId, len(ledgerEventTypes))
	for _, eventType := range ledgerEventTypes {
		subIds[eventType] = s.config.EventBus.SubscribeFunc(
			eventType,
			func(evt event.Event) {
				select {
				case evtCh <- evt:
				default:
					s.logger.Warn(
						"event stream client too slow, dropping event",
						"type", evt.Type,
					)
				}
			},
		)
	}
	defer func() {
		for eventType, subId := range subIds {
			s.config.EventBus.Unsubscribe(eventType, subId)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	// Streams end when the server stops so Shutdown does not wait on them
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	keepalive := time.NewTicker(eventStreamKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt := <-evtCh:
			data, ok := eventResponse(evt.Data)
			if !ok {
				continue
			}
			payload, err := json.Marshal(data)
			if err != nil {
				s.logger.Error(
					"failed to encode event",
					"type", evt.Type,
					"error", err,
				)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
