package clients

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// defaultNameserver is used when /etc/resolv.conf cannot be read.
const defaultNameserver = "127.0.0.53:53"

// ResolveBackupServers looks up the SRV records of service (for example
// "_backup._tcp.example.com") and returns base URLs for the targets, ordered
// by priority and then by descending weight. An empty nameserver uses the
// system resolver configuration.
func ResolveBackupServers(ctx context.Context, service, nameserver, scheme string) ([]string, error) {
	if nameserver == "" {
		nameserver = systemNameserver()
	}
	if scheme == "" {
		scheme = "https"
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(service), dns.TypeSRV)
	m.RecursionDesired = true

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, m, nameserver)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup of %s failed: %w", service, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("SRV lookup of %s failed: %s", service, dns.RcodeToString[in.Rcode])
	}

	records := make([]*dns.SRV, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no SRV records for %s", service)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})

	urls := make([]string, 0, len(records))
	for _, srv := range records {
		host := strings.TrimSuffix(srv.Target, ".")
		urls = append(urls, fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(int(srv.Port)))))
	}
	return urls, nil
}

func systemNameserver() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return defaultNameserver
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}
