package intake

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-warranty/core"
)

const (
	SurfaceForm = "form"
	SurfaceAPI  = "api"
)

// Verifier authenticates the submitting dealer before a request
// reaches a handler. The zero dispatcher skips verification.
type Verifier interface {
	Verify(ctx context.Context, req core.IntakeRequest) error
}

type IdempotencyKeyExtractor func(req core.IntakeRequest) (string, error)

// Dispatcher routes intake requests to the handler registered for
// their surface. When an idempotency store is configured, repeated
// deliveries of the same submission are absorbed without allocating a
// second claim number.
type Dispatcher struct {
	Verifier   Verifier
	Store      core.IdempotencyClaimStore
	ExtractKey IdempotencyKeyExtractor
	KeyTTL     time.Duration

	mu       sync.RWMutex
	handlers map[string]core.IntakeHandler
}

func NewDispatcher(verifier Verifier, store core.IdempotencyClaimStore) *Dispatcher {
	return &Dispatcher{
		Verifier:   verifier,
		Store:      store,
		ExtractKey: DefaultIdempotencyKeyExtractor,
		KeyTTL:     10 * time.Minute,
		handlers:   map[string]core.IntakeHandler{},
	}
}

func (d *Dispatcher) Register(handler core.IntakeHandler) error {
	if d == nil {
		return intakeInternal("intake: dispatcher is nil", nil)
	}
	if handler == nil {
		return intakeBadInput("intake: handler is nil", nil)
	}
	surface := normalizeSurface(handler.Surface())
	if !isSupportedSurface(surface) {
		return intakeBadInput(
			fmt.Sprintf("intake: unsupported surface %q", surface),
			map[string]any{"surface": surface},
		)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[surface]; exists {
		return intakeError(
			fmt.Sprintf("intake: handler already registered for surface %q", surface),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.ClaimsErrorConflict,
			map[string]any{"surface": surface},
		)
	}
	d.handlers[surface] = handler
	return nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, req core.IntakeRequest) (core.IntakeResult, error) {
	if d == nil {
		return core.IntakeResult{}, intakeInternal("intake: dispatcher is nil", nil)
	}
	req.DealerID = strings.TrimSpace(req.DealerID)
	req.Surface = normalizeSurface(req.Surface)
	if req.DealerID == "" {
		return core.IntakeResult{}, intakeBadInput("intake: dealer id is required", map[string]any{
			"surface": req.Surface,
		})
	}
	if !isSupportedSurface(req.Surface) {
		return core.IntakeResult{}, intakeBadInput(
			fmt.Sprintf("intake: unsupported surface %q", req.Surface),
			map[string]any{"dealer_id": req.DealerID, "surface": req.Surface},
		)
	}
	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, req); err != nil {
			return core.IntakeResult{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata: map[string]any{
					"dealer_id": req.DealerID,
					"surface":   req.Surface,
					"rejected":  true,
				},
			}, intakeWrapError(
				err,
				goerrors.CategoryAuth,
				"intake: request verification failed",
				http.StatusUnauthorized,
				core.ClaimsErrorUnauthorized,
				map[string]any{"dealer_id": req.DealerID, "surface": req.Surface},
			)
		}
	}

	claimID := ""
	if d.Store != nil {
		extractor := d.ExtractKey
		if extractor == nil {
			extractor = DefaultIdempotencyKeyExtractor
		}
		key, err := extractor(req)
		if err != nil {
			return core.IntakeResult{}, intakeWrapError(
				err,
				goerrors.CategoryBadInput,
				"intake: resolve idempotency key",
				http.StatusBadRequest,
				core.ClaimsErrorBadInput,
				map[string]any{"dealer_id": req.DealerID, "surface": req.Surface},
			)
		}
		var accepted bool
		claimID, accepted, err = d.Store.Claim(ctx, req.DealerID+":"+req.Surface+":"+key, d.keyTTL())
		if err != nil {
			return core.IntakeResult{}, intakeWrapError(
				err,
				goerrors.CategoryOperation,
				"intake: idempotency claim failed",
				http.StatusInternalServerError,
				core.ClaimsErrorOperationFailed,
				map[string]any{
					"dealer_id":   req.DealerID,
					"surface":     req.Surface,
					"idempotency": key,
				},
			)
		}
		if !accepted {
			return core.IntakeResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"dealer_id": req.DealerID,
					"surface":   req.Surface,
					"deduped":   true,
				},
			}, nil
		}
	}

	handler := d.handlerFor(req.Surface)
	if handler == nil {
		return core.IntakeResult{}, intakeError(
			fmt.Sprintf("intake: no handler registered for surface %q", req.Surface),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.ClaimsErrorNotFound,
			map[string]any{"dealer_id": req.DealerID, "surface": req.Surface},
		)
	}
	result, err := handler.Handle(ctx, req)
	if err != nil {
		handlerErr := intakeWrapError(
			err,
			goerrors.CategoryOperation,
			"intake: handler execution failed",
			http.StatusBadGateway,
			core.ClaimsErrorOperationFailed,
			map[string]any{"dealer_id": req.DealerID, "surface": req.Surface},
		)
		if d.Store != nil && claimID != "" {
			if failErr := d.Store.Fail(ctx, claimID, err, time.Time{}); failErr != nil {
				return core.IntakeResult{}, errors.Join(
					handlerErr,
					intakeWrapError(
						failErr,
						goerrors.CategoryOperation,
						"intake: mark idempotency claim failed",
						http.StatusInternalServerError,
						core.ClaimsErrorInternal,
						map[string]any{"dealer_id": req.DealerID, "surface": req.Surface, "claim_id": claimID},
					),
				)
			}
		}
		return core.IntakeResult{}, handlerErr
	}
	retryableFailure := !result.Accepted || result.StatusCode >= http.StatusInternalServerError
	if retryableFailure {
		retryErr := intakeError(
			fmt.Sprintf("intake: handler returned retryable status %d", result.StatusCode),
			goerrors.CategoryOperation,
			http.StatusBadGateway,
			core.ClaimsErrorOperationFailed,
			map[string]any{
				"dealer_id":   req.DealerID,
				"surface":     req.Surface,
				"status_code": result.StatusCode,
			},
		)
		if d.Store != nil && claimID != "" {
			if failErr := d.Store.Fail(ctx, claimID, retryErr, time.Time{}); failErr != nil {
				return result, errors.Join(
					retryErr,
					intakeWrapError(
						failErr,
						goerrors.CategoryOperation,
						"intake: mark idempotency claim failed",
						http.StatusInternalServerError,
						core.ClaimsErrorInternal,
						map[string]any{"dealer_id": req.DealerID, "surface": req.Surface, "claim_id": claimID},
					),
				)
			}
		}
		return result, retryErr
	}
	if d.Store != nil && claimID != "" {
		if err := d.Store.Complete(ctx, claimID); err != nil {
			return core.IntakeResult{}, intakeWrapError(
				err,
				goerrors.CategoryOperation,
				"intake: complete idempotency claim",
				http.StatusInternalServerError,
				core.ClaimsErrorOperationFailed,
				map[string]any{"dealer_id": req.DealerID, "surface": req.Surface, "claim_id": claimID},
			)
		}
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["dealer_id"] = req.DealerID
	result.Metadata["surface"] = req.Surface
	return result, nil
}

func DefaultIdempotencyKeyExtractor(req core.IntakeRequest) (string, error) {
	if req.Metadata != nil {
		if value := trimAny(req.Metadata["idempotency_key"]); value != "" {
			return value, nil
		}
		if value := trimAny(req.Metadata["submission_id"]); value != "" {
			return value, nil
		}
	}
	if req.Headers != nil {
		if value := headerValue(req.Headers, "idempotency-key"); value != "" {
			return value, nil
		}
		if value := headerValue(req.Headers, "x-idempotency-key"); value != "" {
			return value, nil
		}
		if value := headerValue(req.Headers, "x-request-id"); value != "" {
			return value, nil
		}
	}
	return "", intakeBadInput("intake: idempotency key is required", map[string]any{
		"dealer_id": req.DealerID,
		"surface":   req.Surface,
	})
}

func (d *Dispatcher) keyTTL() time.Duration {
	if d != nil && d.KeyTTL > 0 {
		return d.KeyTTL
	}
	return 10 * time.Minute
}

func (d *Dispatcher) handlerFor(surface string) core.IntakeHandler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[normalizeSurface(surface)]
}

func normalizeSurface(surface string) string {
	return strings.TrimSpace(strings.ToLower(surface))
}

func isSupportedSurface(surface string) bool {
	switch normalizeSurface(surface) {
	case SurfaceForm, SurfaceAPI:
		return true
	default:
		return false
	}
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
