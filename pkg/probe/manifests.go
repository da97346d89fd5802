// Package probe implements the Probe Pipeline (spec §4.8): rendering and
// applying the in-cluster probe resources (CRDs, RBAC, namespace, service,
// self-signed TLS secret, mutating admission webhook, probe-pod deployment,
// suicidal-pod job), the in-cluster probe agent (pkg/probe/agent) and
// suicidal pod (pkg/probe/suicidal) that run inside those resources, and the
// external run/aggregate loop that drives a probe run end to end.
//
// Grounded on original_source/chaosgarden/k8s/probe/resources/
// generate_resources.py (template rendering, replica count, self-signed
// cert) and original_source/chaosgarden/k8s/probes.py (setup/cleanup/
// generate_metrics).
package probe

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// Namespace is the namespace every namespaced probe resource lives in.
	Namespace = "chaos-garden-probe"
	// ServiceName (port 8080) is where the mutating webhook reaches the
	// probe pod; commonName below must match the service's DNS name.
	ServiceName = "probe"
	webhookPath = "/webhook"

	// commonName must match the service's cluster DNS name, since the probe
	// pod's embedded TLS certificate is validated against it by the
	// kube-apiserver when it calls the webhook.
	commonName = ServiceName + "." + Namespace + ".svc"

	// probeAgentImage and suicidalPodImage both point at the same image:
	// the one cmd/chaos-engineering binary, dispatched into pkg/probe/agent
	// or pkg/probe/suicidal by its "probe-agent"/"suicidal-pod" subcommand
	// (see deployment's and suicidalPodJob's Command). Building the image
	// itself is outside this module's scope.
	probeAgentImage  = "chaos-engineering:latest"
	suicidalPodImage = "chaos-engineering:latest"

	crtValidity = 24 * time.Hour
	keySize     = 2048
)

// Certificate is a generated self-signed TLS key pair for the webhook
// service, PEM-encoded, ready to be embedded in a Secret and as the
// MutatingWebhookConfiguration's CA bundle (the probe pod is both server and
// its own CA, since only the webhook itself ever validates the connection).
type Certificate struct {
	KeyPEM []byte
	CrtPEM []byte
}

// generateCertificate creates a fresh RSA key and a self-signed certificate
// for commonName, valid for crtValidity from now.
//
// Grounded on generate_resources.py, which does the equivalent with the
// `cryptography` package (rsa.generate_private_key + x509.CertificateBuilder
// self-signed with subject == issuer).
func generateCertificate() (*Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, fmt.Errorf("generating probe webhook TLS key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating probe webhook certificate serial: %w", err)
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		Issuer:                pkix.Name{CommonName: commonName},
		NotBefore:             now,
		NotAfter:              now.Add(crtValidity),
		DNSNames:              []string{commonName},
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("self-signing probe webhook certificate: %w", err)
	}

	return &Certificate{
		KeyPEM: pemEncode("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)),
		CrtPEM: pemEncode("CERTIFICATE", der),
	}, nil
}

func pemEncode(blockType string, der []byte) []byte {
	return []byte(fmt.Sprintf("-----BEGIN %s-----\n%s-----END %s-----\n", blockType, chunk(der), blockType))
}

// chunk base64-PEM-wraps der at 64 columns, the conventional PEM line width.
func chunk(der []byte) string {
	encoded := base64.StdEncoding.EncodeToString(der)
	var out []byte
	for i := 0; i < len(encoded); i += 64 {
		end := i + 64
		if end > len(encoded) {
			end = len(encoded)
		}
		out = append(out, encoded[i:end]...)
		out = append(out, '\n')
	}
	return string(out)
}

// AsTLSCertificate parses Certificate into a tls.Certificate ready for a
// tls.Config, for the probe agent's own HTTPS listener.
func (c *Certificate) AsTLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(c.CrtPEM, c.KeyPEM)
}

// Resources renders every manifest the probe pipeline applies, in apply
// order: CRDs, namespace, RBAC, TLS secret, service, deployment, mutating
// webhook configuration, and the suicidal-pod job. replicas is
// max(1, len(zones)) per spec §4.8; zones may be empty for a syntax-only
// render (teardown needs only kind/name/namespace, not a live cert).
// ExternalAPI carries the shoot's externally-reachable (garden-facing) API
// server URL and a bearer token valid against it, so the probe Deployment's
// api-external/dns-external probes (spec §4.8) can check LB-level
// reachability from inside the very cluster they target — the same
// short-lived AdminKubeconfigRequest credential the resolver already
// obtained to build the shoot client is forwarded here rather than
// re-requested. A zero-value ExternalAPI disables the external-reachability
// checks: they log and skip rather than fail the Setup call outright.
type ExternalAPI struct {
	Host  string
	Token string
}

func Resources(zones []string, externalAPI ExternalAPI) ([]client.Object, error) {
	cert, err := generateCertificate()
	if err != nil {
		return nil, err
	}
	replicas := int32(len(zones))
	if replicas < 1 {
		replicas = 1
	}

	objs := []client.Object{
		heartbeatCRD(),
		acknowledgedHeartbeatCRD(),
		namespaceResource(),
		serviceAccount(),
		clusterRole(),
		clusterRoleBinding(),
		tlsSecret(cert),
		service(),
		deployment(replicas, externalAPI),
		mutatingWebhookConfiguration(cert),
		suicidalPodJob(),
	}
	return objs, nil
}

func namespaceResource() *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: Namespace}}
}

func serviceAccount() *corev1.ServiceAccount {
	return &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Name: "probe", Namespace: Namespace}}
}

// clusterRole grants the probe agent and suicidal pod exactly the
// permissions they exercise: reading their own pod/node, creating/patching
// heartbeats and DNS test records, and deleting themselves.
//
// Grounded on the API calls probe_pod.py and suicidal_pod.py make:
// read_namespaced_pod, read_node, create_cluster_custom_object (heartbeats,
// acknowledgedheartbeats), create/patch_namespaced_custom_object
// (dnsentries), delete_namespaced_pod, read_namespaced_config_map
// (shoot-info).
func clusterRole() *rbacv1.ClusterRole {
	return &rbacv1.ClusterRole{
		ObjectMeta: metav1.ObjectMeta{Name: "chaos-garden-probe"},
		Rules: []rbacv1.PolicyRule{
			{APIGroups: []string{""}, Resources: []string{"pods"}, Verbs: []string{"get", "delete"}},
			{APIGroups: []string{""}, Resources: []string{"nodes"}, Verbs: []string{"get"}},
			{APIGroups: []string{""}, Resources: []string{"configmaps"}, Verbs: []string{"get"}},
			{APIGroups: []string{"chaos.gardener.cloud"}, Resources: []string{"heartbeats", "acknowledgedheartbeats"}, Verbs: []string{"get", "list", "create"}},
			{APIGroups: []string{"dns.gardener.cloud"}, Resources: []string{"dnsentries"}, Verbs: []string{"get", "create", "patch"}},
		},
	}
}

func clusterRoleBinding() *rbacv1.ClusterRoleBinding {
	return &rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{Name: "chaos-garden-probe"},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     "chaos-garden-probe",
		},
		Subjects: []rbacv1.Subject{
			{Kind: "ServiceAccount", Name: "probe", Namespace: Namespace},
		},
	}
}

func tlsSecret(cert *Certificate) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "probe-webhook-tls", Namespace: Namespace},
		Type:       corev1.SecretTypeTLS,
		Data: map[string][]byte{
			corev1.TLSCertKey:       cert.CrtPEM,
			corev1.TLSPrivateKeyKey: cert.KeyPEM,
		},
	}
}

func service() *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: ServiceName, Namespace: Namespace},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": "probe"},
			Ports: []corev1.ServicePort{
				{Name: "webhook", Port: 8080, TargetPort: intstr.FromInt(8080)},
			},
		},
	}
}

func deployment(replicas int32, externalAPI ExternalAPI) *appsv1.Deployment {
	labels := map[string]string{"app": "probe"}
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "probe", Namespace: Namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					ServiceAccountName: "probe",
					Containers: []corev1.Container{
						{
							Name:    "probe",
							Image:   probeAgentImage,
							Command: []string{"chaos-engineering", "probe-agent"},
							Ports:   []corev1.ContainerPort{{ContainerPort: 8080}},
							Env: []corev1.EnvVar{
								{Name: "POD_NAME", ValueFrom: &corev1.EnvVarSource{FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"}}},
								{Name: "POD_NAMESPACE", ValueFrom: &corev1.EnvVarSource{FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.namespace"}}},
								{Name: "EXTERNAL_API_HOST", Value: externalAPI.Host},
								{Name: "EXTERNAL_API_TOKEN", Value: externalAPI.Token},
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "tls", MountPath: "/tls", ReadOnly: true},
							},
						},
					},
					Volumes: []corev1.Volume{
						{Name: "tls", VolumeSource: corev1.VolumeSource{Secret: &corev1.SecretVolumeSource{SecretName: "probe-webhook-tls"}}},
					},
				},
			},
		},
	}
}

// mutatingWebhookConfiguration targets AcknowledgedHeartbeat creation only
// (the webhook challenger's resource), matching probe_pod.py's
// webhook_probe handler, which unconditionally allows every request and
// patches ready/payload.
func mutatingWebhookConfiguration(cert *Certificate) *admissionregistrationv1.MutatingWebhookConfiguration {
	failurePolicy := admissionregistrationv1.Ignore
	sideEffects := admissionregistrationv1.SideEffectClassNone
	path := webhookPath
	port := int32(8080)
	return &admissionregistrationv1.MutatingWebhookConfiguration{
		ObjectMeta: metav1.ObjectMeta{Name: "chaos-garden-probe"},
		Webhooks: []admissionregistrationv1.MutatingWebhook{
			{
				Name:                    "probe.chaos-garden-probe.svc",
				AdmissionReviewVersions: []string{"v1"},
				SideEffects:             &sideEffects,
				FailurePolicy:           &failurePolicy,
				ClientConfig: admissionregistrationv1.WebhookClientConfig{
					Service: &admissionregistrationv1.ServiceReference{
						Name:      ServiceName,
						Namespace: Namespace,
						Path:      &path,
						Port:      &port,
					},
					CABundle: cert.CrtPEM,
				},
				Rules: []admissionregistrationv1.RuleWithOperations{
					{
						Operations: []admissionregistrationv1.OperationType{admissionregistrationv1.Create},
						Rule: admissionregistrationv1.Rule{
							APIGroups:   []string{"chaos.gardener.cloud"},
							APIVersions: []string{"v1"},
							Resources:   []string{"acknowledgedheartbeats"},
						},
					},
				},
			},
		},
	}
}

// suicidalPodJob runs the pod-lifecycle probe once per invocation: a single
// pod that reports its own restart count then deletes itself (spec §4.8).
// Kept at 1 replica regardless of zone count: it exercises one kubelet's
// restart loop, not a per-zone probe.
func suicidalPodJob() *batchv1.Job {
	labels := map[string]string{"app": "pod-lifecycle-probe"}
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: "pod-lifecycle-probe", Namespace: Namespace},
		Spec: batchv1.JobSpec{
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					ServiceAccountName: "probe",
					RestartPolicy:      corev1.RestartPolicyOnFailure,
					Containers: []corev1.Container{
						{
							Name:    "suicidal-pod",
							Image:   suicidalPodImage,
							Command: []string{"chaos-engineering", "suicidal-pod"},
							Env: []corev1.EnvVar{
								{Name: "POD_NAME", ValueFrom: &corev1.EnvVarSource{FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"}}},
								{Name: "POD_NAMESPACE", ValueFrom: &corev1.EnvVarSource{FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.namespace"}}},
							},
						},
					},
				},
			},
		},
	}
}

func heartbeatCRD() *apiextensionsv1.CustomResourceDefinition {
	return crd("heartbeats", "Heartbeat", "HeartbeatList")
}

func acknowledgedHeartbeatCRD() *apiextensionsv1.CustomResourceDefinition {
	return crd("acknowledgedheartbeats", "AcknowledgedHeartbeat", "AcknowledgedHeartbeatList")
}

func crd(plural, kind, listKind string) *apiextensionsv1.CustomResourceDefinition {
	preserveUnknown := true
	return &apiextensionsv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: plural + ".chaos.gardener.cloud"},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: "chaos.gardener.cloud",
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Plural:   plural,
				Singular: plural[:len(plural)-1],
				Kind:     kind,
				ListKind: listKind,
			},
			Scope: apiextensionsv1.ClusterScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{
				{
					Name:    "v1",
					Served:  true,
					Storage: true,
					Schema: &apiextensionsv1.CustomResourceValidation{
						OpenAPIV3Schema: &apiextensionsv1.JSONSchemaProps{
							Type:                   "object",
							XPreserveUnknownFields: &preserveUnknown,
						},
					},
				},
			},
		},
	}
}
