package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestServiceErrorMapper_DomainSentinels(t *testing.T) {
	cases := []struct {
		err      error
		textCode string
		code     int
	}{
		{ErrLeadNotFound, ServiceErrorLeadNotFound, http.StatusNotFound},
		{ErrIngestionNotFound, ServiceErrorIngestionNotFound, http.StatusNotFound},
		{ErrDeliveryNotFound, ServiceErrorDeliveryNotFound, http.StatusNotFound},
		{ErrDestinationNotFound, ServiceErrorDestinationUnknown, http.StatusNotFound},
		{ErrNoTargetLead, ServiceErrorMergeFailed, http.StatusUnprocessableEntity},
		{fmt.Errorf("core: workspace_id is required"), ServiceErrorBadInput, http.StatusBadRequest},
	}
	for _, tc := range cases {
		mapped := ServiceErrorMapper(tc.err)
		if mapped == nil {
			t.Fatalf("expected mapped error for %v", tc.err)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%v: expected text code %q, got %q", tc.err, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.code {
			t.Fatalf("%v: expected http code %d, got %d", tc.err, tc.code, mapped.Code)
		}
	}
}

func TestServiceErrorMapper_PreservesRichErrors(t *testing.T) {
	rich := goerrors.New("delivery ceiling reached", goerrors.CategoryOperation).
		WithTextCode("REPOLEAD_DELIVERY_EXHAUSTED").
		WithCode(http.StatusConflict)

	mapped := ServiceErrorMapper(rich)
	if mapped.TextCode != "REPOLEAD_DELIVERY_EXHAUSTED" {
		t.Fatalf("expected custom text code preserved, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected custom http code preserved, got %d", mapped.Code)
	}
}

func TestServiceErrorMapper_FillsEnvelopeDefaults(t *testing.T) {
	rich := goerrors.New("boom", goerrors.CategoryInternal)
	mapped := ServiceErrorMapper(rich)
	if mapped.Code != http.StatusInternalServerError {
		t.Fatalf("expected default 500, got %d", mapped.Code)
	}
	if mapped.TextCode != ServiceErrorInternal {
		t.Fatalf("expected internal text code, got %q", mapped.TextCode)
	}
}

func TestServiceErrorMapper_NilPassthrough(t *testing.T) {
	if mapped := ServiceErrorMapper(nil); mapped != nil {
		t.Fatalf("expected nil for nil error, got %v", mapped)
	}
}

func TestServiceErrorMapper_UnknownErrorsBecomeInternal(t *testing.T) {
	mapped := ServiceErrorMapper(errors.New("socket closed unexpectedly"))
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.Code == 0 {
		t.Fatalf("expected http code to be populated")
	}
	if mapped.TextCode == "" {
		t.Fatalf("expected text code to be populated")
	}
}

func TestServiceErrorMapper_KeepsSentinelChain(t *testing.T) {
	wrapped := fmt.Errorf("webhooks: replay: %w", ErrDeliveryNotFound)

	mapped := ServiceErrorMapper(wrapped)
	if !errors.Is(mapped, ErrDeliveryNotFound) {
		t.Fatalf("mapped envelope must still match the domain sentinel, got %v", mapped)
	}

	if mapped.TextCode != ServiceErrorDeliveryNotFound {
		t.Fatalf("text code %q", mapped.TextCode)
	}
}
