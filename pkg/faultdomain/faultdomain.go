package faultdomain

import (
	"fmt"
	"strings"

	"github.com/cuemby/burrow/pkg/types"
)

// Spec is a fault domain as written on the command line, before host
// display names are resolved against the cluster inventory.
type Spec struct {
	Name      string
	HostNames []string
}

// Parse reads a whitespace-separated list of name:host[,host...] tokens.
// An empty string yields no specs.
func Parse(s string) ([]Spec, error) {
	var specs []Spec
	seen := make(map[string]bool)

	for _, token := range strings.Fields(s) {
		name, hostList, ok := strings.Cut(token, ":")
		if !ok {
			return nil, fmt.Errorf("invalid fault domain %q: expected name:host[,host...]", token)
		}
		if name == "" {
			return nil, fmt.Errorf("invalid fault domain %q: empty name", token)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate fault domain %q", name)
		}
		seen[name] = true

		spec := Spec{Name: name}
		for _, h := range strings.Split(hostList, ",") {
			if h = strings.TrimSpace(h); h != "" {
				spec.HostNames = append(spec.HostNames, h)
			}
		}
		specs = append(specs, spec)
	}

	return specs, nil
}

// Resolve maps display names to cluster hosts. Members keep the cluster's
// host order; names matching no host are dropped and a domain left with no
// members is still returned.
func Resolve(specs []Spec, hosts []types.Host) []types.FaultDomain {
	domains := make([]types.FaultDomain, 0, len(specs))
	for _, spec := range specs {
		wanted := make(map[string]bool, len(spec.HostNames))
		for _, name := range spec.HostNames {
			wanted[name] = true
		}

		fd := types.FaultDomain{Name: spec.Name, Hosts: []types.Host{}}
		for _, h := range hosts {
			if wanted[h.Name] {
				fd.Hosts = append(fd.Hosts, h)
			}
		}
		domains = append(domains, fd)
	}
	return domains
}

// Unresolved returns the host names of a spec that match no cluster host
func Unresolved(spec Spec, hosts []types.Host) []string {
	known := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		known[h.Name] = true
	}

	var missing []string
	for _, name := range spec.HostNames {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
