package agent

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	externalDomainProbeName = "dns-external"
	internalDomainProbeName = "dns-internal"
	internalAPIFQDN         = "kubernetes.default.svc.cluster.local"
)

// resolver issues a fresh DNS query against resolvConf's first nameserver
// for every call, bypassing any OS/libc/Go-runtime resolver cache the way
// forking a brand-new process to do the lookup would — the thing
// probe_pod.py's resolve_ip_from_forked_process achieves by literally
// `Popen`-ing a new python interpreter per resolution.
type resolver struct {
	client  *dns.Client
	server  string
}

func newResolver() (*resolver, error) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return nil, fmt.Errorf("reading /etc/resolv.conf: %w", err)
	}
	return &resolver{
		client: &dns.Client{Timeout: 5 * time.Second},
		server: conf.Servers[0] + ":" + conf.Port,
	}, nil
}

// resolveSorted returns the sorted A-record addresses for fqdn, the
// lowest-first order resolve_ip_from_forked_process relies on
// (`sorted(...)[0]`).
func (r *resolver) resolveSorted(fqdn string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(fqdn), dns.TypeA)
	reply, _, err := r.client.Exchange(msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", fqdn, err)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("querying %s: rcode %s", fqdn, dns.RcodeToString[reply.Rcode])
	}
	var addrs []string
	for _, rr := range reply.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no A records for %s", fqdn)
	}
	sort.Strings(addrs)
	return addrs, nil
}

func hostOf(fqdnOrURL string) string {
	if strings.Contains(fqdnOrURL, "://") {
		if u, err := url.Parse(fqdnOrURL); err == nil {
			return u.Hostname()
		}
	}
	return fqdnOrURL
}

// DNSProbe resolves the external API host and the in-cluster API FQDN once
// as a baseline, then repeatedly re-resolves both via a fresh query every
// Interval, emitting a dns-external/dns-internal heartbeat per resolution
// according to whether the freshly-resolved address still matches the
// baseline.
//
// Grounded on probe_pod.py's dns_probe.
func DNSProbe(ctx context.Context, emitter *Emitter, zone, externalAPIHost string) error {
	r, err := newResolver()
	if err != nil {
		return err
	}

	extHost := hostOf(externalAPIHost)
	intHost := internalAPIFQDN

	baselineExt, err := r.resolveSorted(extHost)
	if err != nil {
		return fmt.Errorf("resolving dns baseline for %s: %w", extHost, err)
	}
	baselineInt, err := r.resolveSorted(intHost)
	if err != nil {
		return fmt.Errorf("resolving dns baseline for %s: %w", intHost, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		probeOnce(emitter, ctx, zone, externalDomainProbeName, r, extHost, baselineExt[0])
		probeOnce(emitter, ctx, zone, internalDomainProbeName, r, intHost, baselineInt[0])

		time.Sleep(Interval)
	}
}

func probeOnce(emitter *Emitter, ctx context.Context, zone, probeName string, r *resolver, fqdn, baseline string) {
	addrs, err := r.resolveSorted(fqdn)
	ready := err == nil && addrs[0] == baseline
	emitter.Enqueue(ctx, probeName, zone, ready, "")
}
