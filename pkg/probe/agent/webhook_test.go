package agent

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	admissionv1 "k8s.io/api/admission/v1"
	"k8s.io/apimachinery/pkg/types"
)

func TestWebhookHandlerAllowsAndPatches(t *testing.T) {
	review := admissionv1.AdmissionReview{
		Request: &admissionv1.AdmissionRequest{UID: types.UID("abc-123")},
	}
	body, err := json.Marshal(review)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	WebhookHandler("probe-pod-xyz").ServeHTTP(rr, req)

	var got admissionv1.AdmissionReview
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.Response == nil || !got.Response.Allowed {
		t.Fatal("expected the review to be allowed")
	}
	if got.Response.UID != "abc-123" {
		t.Fatalf("got uid %q, want abc-123", got.Response.UID)
	}
	if got.Response.PatchType == nil || *got.Response.PatchType != admissionv1.PatchTypeJSONPatch {
		t.Fatal("expected a JSONPatch patch type")
	}

	var ops []jsonPatch
	if err := json.Unmarshal(got.Response.Patch, &ops); err != nil {
		t.Fatalf("unmarshal patch ops: %v", err)
	}
	if len(ops) != 2 || ops[0].Path != "/ready" || ops[1].Path != "/payload" {
		t.Fatalf("unexpected patch ops: %+v", ops)
	}
	if ops[1].Value != "probe-pod-xyz" {
		t.Fatalf("expected payload to carry the pod name, got %v", ops[1].Value)
	}
	if !strings.Contains(got.Response.Result.Message, "probe-pod-xyz") {
		t.Fatalf("expected the admission message to name the acknowledging pod, got %q", got.Response.Result.Message)
	}
}
