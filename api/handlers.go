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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/williamhnyohei/Vetra/internal/version"
	"github.com/williamhnyohei/Vetra/ledger"
)

const apiName = "vetra"

// writeJSON writes a JSON response with the given status code
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	kind string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Kind:       kind,
		Message:    message,
	})
}

// ledgerErrorStatus maps a ledger error to an HTTP status code
func ledgerErrorStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, ledger.ErrFaucetDisabled):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrDuplicateAttestation),
		errors.Is(err, ledger.ErrWithdrawCooldown):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidRiskScore),
		errors.Is(err, ledger.ErrReasonTooLong):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientStake),
		errors.Is(err, ledger.ErrAmountOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeLedgerError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
) {
	status := ledgerErrorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(
			"ledger request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, ledger.ErrorKind(err), "internal error")
		return
	}
	writeError(w, status, ledger.ErrorKind(err), err.Error())
}

// authenticatedBody authenticates the request and decodes its body into v.
// It writes an error response and returns false on failure
func (s *Server) authenticatedBody(
	w http.ResponseWriter,
	r *http.Request,
	v any,
) (ledger.Identity, bool) {
	caller, body, err := authenticate(w, r, time.Now())
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", err.Error())
		case errors.Is(err, ErrMissingCredentials),
			errors.Is(err, ErrBadSignature),
			errors.Is(err, ErrStaleTimestamp),
			errors.Is(err, ledger.ErrInvalidIdentity):
			s.logger.Debug(
				"rejected request",
				"path", r.URL.Path,
				"error", err,
			)
			writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		}
		return ledger.Identity{}, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return ledger.Identity{}, false
	}
	return caller, true
}

func identityParam(
	w http.ResponseWriter,
	r *http.Request,
	name string,
) (ledger.Identity, bool) {
	id, err := ledger.ParseIdentity(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return ledger.Identity{}, false
	}
	return id, true
}

func transactionRefParam(
	w http.ResponseWriter,
	r *http.Request,
	name string,
) (ledger.TransactionRef, bool) {
	ref, err := ledger.ParseTransactionRef(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return ledger.TransactionRef{}, false
	}
	return ref, true
}

func attestationKeyParams(
	w http.ResponseWriter,
	r *http.Request,
) (ledger.AttestationKey, bool) {
	provider, ok := identityParam(w, r, "provider")
	if !ok {
		return ledger.AttestationKey{}, false
	}
	ref, ok := transactionRefParam(w, r, "ref")
	if !ok {
		return ledger.AttestationKey{}, false
	}
	return ledger.AttestationKey{Provider: provider, TransactionRef: ref}, true
}

func paginationParams(
	w http.ResponseWriter,
	r *http.Request,
) (PaginationParams, bool) {
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return PaginationParams{}, false
	}
	return params, true
}

// handleRoot handles GET / and returns API metadata
func (s *Server) handleRoot(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    apiName,
		Version: version.GetVersionString(),
	})
}

func (s *Server) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

// handleListProviders handles GET /api/v1/providers. Providers are ordered by
// descending reputation
func (s *Server) handleListProviders(
	w http.ResponseWriter,
	r *http.Request,
) {
	params, ok := paginationParams(w, r)
	if !ok {
		return
	}
	providers, err := s.ledger.ListProviders(r.Context(), 0)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	page := paginate(w, providers, params)
	ret := make([]ProviderResponse, 0, len(page))
	for i := range page {
		ret = append(ret, newProviderResponse(&page[i]))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleGetProvider(
	w http.ResponseWriter,
	r *http.Request,
) {
	authority, ok := identityParam(w, r, "authority")
	if !ok {
		return
	}
	provider, err := s.ledger.GetProvider(r.Context(), authority)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProviderResponse(provider))
}

func (s *Server) handleListProviderAttestations(
	w http.ResponseWriter,
	r *http.Request,
) {
	authority, ok := identityParam(w, r, "authority")
	if !ok {
		return
	}
	params, ok := paginationParams(w, r)
	if !ok {
		return
	}
	attestations, err := s.ledger.ListAttestationsByProvider(r.Context(), authority)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(
		w,
		http.StatusOK,
		newAttestationResponses(paginate(w, attestations, params)),
	)
}

func (s *Server) handleGetAttestation(
	w http.ResponseWriter,
	r *http.Request,
) {
	key, ok := attestationKeyParams(w, r)
	if !ok {
		return
	}
	attestation, err := s.ledger.GetAttestation(r.Context(), key)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAttestationResponse(attestation))
}

// handleTransactionRisk handles GET /api/v1/transactions/{ref}/attestations
// and returns every attestation about the transaction with the combined score
func (s *Server) handleTransactionRisk(
	w http.ResponseWriter,
	r *http.Request,
) {
	ref, ok := transactionRefParam(w, r, "ref")
	if !ok {
		return
	}
	assessment, err := s.ledger.AggregateRiskScore(r.Context(), ref)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RiskResponse{
		TransactionRef:   assessment.TransactionRef,
		Score:            assessment.Score,
		AttestationCount: len(assessment.Attestations),
		Attestations:     newAttestationResponses(assessment.Attestations),
	})
}

func (s *Server) handleGetWallet(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := identityParam(w, r, "identity")
	if !ok {
		return
	}
	balance, err := s.ledger.Balance(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{Identity: id, Balance: balance})
}

func (s *Server) handleStake(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req StakeRequest
	caller, ok := s.authenticatedBody(w, r, &req)
	if !ok {
		return
	}
	provider, err := s.ledger.Stake(r.Context(), caller, req.Amount)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProviderResponse(provider))
}

func (s *Server) handleCreateAttestation(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req AttestationRequest
	caller, ok := s.authenticatedBody(w, r, &req)
	if !ok {
		return
	}
	if req.TransactionRef == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "transaction_ref is required")
		return
	}
	attestation, err := s.ledger.CreateAttestation(
		r.Context(),
		caller,
		*req.TransactionRef,
		req.RiskScore,
		req.Reason,
	)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAttestationResponse(attestation))
}

func (s *Server) handleVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	key, ok := attestationKeyParams(w, r)
	if !ok {
		return
	}
	var req VoteRequest
	voter, ok := s.authenticatedBody(w, r, &req)
	if !ok {
		return
	}
	if req.IsAccurate == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "is_accurate is required")
		return
	}
	result, err := s.ledger.Vote(r.Context(), voter, key, *req.IsAccurate)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VoteResponse{
		Attestation:     newAttestationResponse(&result.Attestation),
		Owner:           newProviderResponse(&result.Owner),
		ReputationDelta: result.ReputationDelta,
	})
}

func (s *Server) handleWithdraw(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req WithdrawRequest
	caller, ok := s.authenticatedBody(w, r, &req)
	if !ok {
		return
	}
	provider := caller
	if req.Provider != nil {
		provider = *req.Provider
	}
	ret, err := s.ledger.Withdraw(r.Context(), caller, provider, req.Amount)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProviderResponse(ret))
}

// handleFaucet handles POST /api/v1/faucet and credits the caller's wallet
func (s *Server) handleFaucet(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req FaucetRequest
	caller, ok := s.authenticatedBody(w, r, &req)
	if !ok {
		return
	}
	balance, err := s.ledger.Airdrop(r.Context(), caller, req.Amount)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{Identity: caller, Balance: balance})
}
