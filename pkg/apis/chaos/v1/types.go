// Package v1 contains the cluster-scoped custom resource types of the
// chaos.gardener.cloud/v1 API group: Heartbeat and AcknowledgedHeartbeat
// (spec §3, §6).
//
// Grounded on the heart beat payloads original_source/chaosgarden/k8s/probe
// /resources/probe_pod.py and suicidal_pod.py construct by hand
// (`{'apiVersion': 'chaos.gardener.cloud/v1', 'kind': 'Heartbeat', ...}`).
//
// +kubebuilder:object:generate=true
// +groupName=chaos.gardener.cloud
package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Heartbeat is a timestamped liveness record emitted by a probe. Its name is
// always of the form "{probe}-probe-{zone}-{unixTimestamp}" (spec §3).
//
// +genclient
// +genclient:nonNamespaced
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Cluster
type Heartbeat struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Ready is the liveness the emitting probe observed.
	Ready bool `json:"ready"`
	// Payload is optional free-form data carried by the emitting probe
	// (e.g. the acknowledging pod's name, or a lag measurement).
	// +optional
	Payload string `json:"payload,omitempty"`
}

// HeartbeatList is a list of Heartbeat resources.
//
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
type HeartbeatList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []Heartbeat `json:"items"`
}

// AcknowledgedHeartbeat is created by the webhook challenger with Ready
// false; the cluster's mutating admission webhook patches it to Ready true
// on admission, so its persisted state demonstrates an end-to-end
// API-server -> webhook -> API-server round trip (spec §4.8).
//
// +genclient
// +genclient:nonNamespaced
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Cluster
type AcknowledgedHeartbeat struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	// Ready starts false and is flipped to true by the mutating admission
	// webhook; it is never set true by the challenger that creates it.
	Ready bool `json:"ready"`
	// Payload is set by the webhook to the acknowledging pod's name.
	// +optional
	Payload string `json:"payload,omitempty"`
}

// AcknowledgedHeartbeatList is a list of AcknowledgedHeartbeat resources.
//
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
type AcknowledgedHeartbeatList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []AcknowledgedHeartbeat `json:"items"`
}
