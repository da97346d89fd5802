package agent

import (
	"encoding/json"
	"net/http"

	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// jsonPatch is the admission response's patch body, applied by the
// API server before persisting an AcknowledgedHeartbeat: set ready true, add
// payload with this pod's name.
//
// Grounded verbatim on probe_pod.py's webhook_probe: it always allows the
// request and always returns the same two-op JSONPatch, regardless of what
// was submitted, since the only object this webhook is ever registered
// against is AcknowledgedHeartbeat creation.
type jsonPatch struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// WebhookHandler returns an http.Handler that acknowledges every
// AdmissionReview it receives by allowing it and patching
// ready=true/payload=podName, identifying itself as podName in the
// admission response's status message.
func WebhookHandler(podName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var review admissionv1.AdmissionReview
		if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		patch, err := json.Marshal([]jsonPatch{
			{Op: "replace", Path: "/ready", Value: true},
			{Op: "add", Path: "/payload", Value: podName},
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		patchType := admissionv1.PatchTypeJSONPatch
		response := admissionv1.AdmissionReview{
			TypeMeta: review.TypeMeta,
			Response: &admissionv1.AdmissionResponse{
				UID:     review.Request.UID,
				Allowed: true,
				Result: &metav1.Status{
					Message: "Probe heart beat acknowledged by " + podName,
				},
				PatchType: &patchType,
				Patch:     patch,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})
}
