package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/gardener/chaos-engineering/pkg/probe"
)

const (
	dnsManagementProbeName     = "dns-management"
	dnsManagementMaxLagSeconds = 60

	dnsEntryGroup   = "dns.gardener.cloud"
	dnsEntryVersion = "v1alpha1"
)

var dnsEntryGVK = schema.GroupVersionKind{Group: dnsEntryGroup, Version: dnsEntryVersion, Kind: "DNSEntry"}

// dnsManagementTestRecord builds the DNSEntry object whose target IP encodes
// the current wall-clock hour.minute.second, e.g. "10.14.32.7" for
// 14:32:07. Grounded on probe_pod.py's create_dns_mgmt_test_record.
func dnsManagementTestRecord(name, fqdn string, ttl int64) *unstructured.Unstructured {
	now := time.Now().UTC()
	target := fmt.Sprintf("10.%d.%d.%d", now.Hour(), now.Minute(), now.Second())

	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(dnsEntryGVK)
	obj.SetName(name)
	obj.SetNamespace(probe.Namespace)
	obj.SetAnnotations(map[string]string{"dns.gardener.cloud/class": "garden"})
	_ = unstructured.SetNestedField(obj.Object, fqdn, "spec", "dnsName")
	_ = unstructured.SetNestedField(obj.Object, ttl, "spec", "ttl")
	_ = unstructured.SetNestedStringSlice(obj.Object, []string{target}, "spec", "targets")
	return obj
}

// dnsManagementUpdater creates the test record (ignoring 409) then schedules
// a cron job that re-patches it with a freshly-encoded target IP every
// Interval, mirroring probe_pod.py's dns_mgmt_updater. The job runs until ctx
// is cancelled, at which point the scheduler is stopped and any in-flight
// update is allowed to finish before returning.
func dnsManagementUpdater(ctx context.Context, c client.Client, name, fqdn string) {
	record := dnsManagementTestRecord(name, fqdn, 1)
	if err := c.Create(ctx, record.DeepCopy()); err != nil && !apierrors.IsAlreadyExists(err) {
		return
	}

	sched := cron.New()
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", Interval), func() {
		_ = c.Patch(ctx, dnsManagementTestRecord(name, fqdn, 1), client.Merge)
	}); err != nil {
		return
	}
	sched.Start()

	<-ctx.Done()
	<-sched.Stop().Done()
}

// lagFromEncodedIP decodes an address of the form "10.H.M.S" back into a lag
// (in seconds) relative to now, wrapping across midnight.
//
// Grounded on probe_pod.py's dns_mgmt_probe lag computation.
func lagFromEncodedIP(addr string, now time.Time) (int, error) {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("malformed encoded address %q", addr)
	}
	hour, err1 := strconv.Atoi(parts[1])
	minute, err2 := strconv.Atoi(parts[2])
	second, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("malformed encoded address %q", addr)
	}

	nowSeconds := ((now.Hour()*60)+now.Minute())*60 + now.Second()
	encodedSeconds := ((hour*60)+minute)*60 + second
	if nowSeconds >= encodedSeconds {
		return nowSeconds - encodedSeconds, nil
	}
	return 24*60*60 + nowSeconds - encodedSeconds, nil
}

// DNSManagementProbe maintains a DNSEntry test record and resolves it every
// Interval, reporting ready = (lag <= 60s). Domain is the shoot's cluster
// domain (read from the shoot-info ConfigMap by the caller), so the test
// record's FQDN is "chaosgarden-dns-mgmt-probe-test-record-<zone>.<domain>".
//
// Grounded on probe_pod.py's dns_mgmt_probe.
func DNSManagementProbe(ctx context.Context, emitter *Emitter, c client.Client, zone, domain string) error {
	r, err := newResolver()
	if err != nil {
		return err
	}

	fqdn := fmt.Sprintf("chaosgarden-dns-mgmt-probe-test-record-%s.%s", zone, domain)
	name := strings.SplitN(fqdn, ".", 2)[0]

	go dnsManagementUpdater(ctx, c, name, fqdn)

	resolvedOnce := false
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		addrs, err := r.resolveSorted(fqdn)
		if err != nil {
			if resolvedOnce {
				emitter.Enqueue(ctx, dnsManagementProbeName, zone, false, "")
			}
			time.Sleep(Interval)
			continue
		}
		resolvedOnce = true

		lag, err := lagFromEncodedIP(addrs[0], time.Now().UTC())
		if err != nil {
			emitter.Enqueue(ctx, dnsManagementProbeName, zone, false, "")
			time.Sleep(Interval)
			continue
		}
		emitter.Enqueue(ctx, dnsManagementProbeName, zone, lag <= dnsManagementMaxLagSeconds, strconv.Itoa(lag))

		time.Sleep(Interval)
	}
}
